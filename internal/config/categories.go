package config

// CategoryWeights orders command categories in /help.
var CategoryWeights = map[string]int{
	"🕯️ Information": 0,
	"🎬 Movie Night":  10,
	"🔊 Soundboard":   20,
	"📢 Utilities":    30,
}
