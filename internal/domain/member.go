package domain

// MediaState is what a participant publishes about its own devices.
// The relay never inspects media, it only forwards these flags.
type MediaState struct {
	Audio bool `json:"audio"`
	Video bool `json:"video"`
}
