package notify

// Color returns the progress bar colour for a percentage band.
func Color(percentage int) string {
	switch {
	case percentage >= 80:
		return "#4CAF50"
	case percentage >= 60:
		return "#FF9800"
	case percentage >= 40:
		return "#2196F3"
	case percentage >= 20:
		return "#FFC107"
	default:
		return "#e0e0e0"
	}
}

// Encouragement is the icon and message shown next to overall progress.
type Encouragement struct {
	Icon    string `json:"icon"`
	Message string `json:"message"`
}

// Encourage picks the encouragement for an overall percentage.
func Encourage(percentage int) Encouragement {
	switch {
	case percentage >= 95:
		return Encouragement{Icon: "🎉", Message: "Perfect! Outstanding work!"}
	case percentage >= 90:
		return Encouragement{Icon: "🏆", Message: "Almost there, one last step!"}
	case percentage >= 75:
		return Encouragement{Icon: "⭐", Message: "Great progress!"}
	case percentage >= 50:
		return Encouragement{Icon: "🌳", Message: "Growing steadily!"}
	case percentage >= 25:
		return Encouragement{Icon: "🌿", Message: "A good start!"}
	case percentage >= 10:
		return Encouragement{Icon: "🌱", Message: "Your learning is sprouting!"}
	default:
		return Encouragement{Icon: "💪", Message: "Let's keep at it together!"}
	}
}

// Badge is the achievement badge for an item card; empty below 50%.
func Badge(percentage int) string {
	switch {
	case percentage >= 80:
		return "high-achievement"
	case percentage >= 50:
		return "good-progress"
	default:
		return ""
	}
}
