package models

type Voice struct {
	VoiceID string `json:"voice_id"`
	Name    string `json:"name"`
}

type VoicesFile struct {
	Voices []Voice `json:"voices"`
}
