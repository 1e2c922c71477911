package profile

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Profile is the tuning configuration handed to the agent worker. The two
// shipped profiles trade transcription breadth for response latency.
type Profile struct {
	Name string `yaml:"name" json:"name"`
	STT  STT    `yaml:"stt" json:"stt"`
	LLM  LLM    `yaml:"llm" json:"llm"`
	TTS  TTS    `yaml:"tts" json:"tts"`
	VAD  VAD    `yaml:"vad" json:"vad"`
	Turn Turn   `yaml:"turn_detection" json:"turn_detection"`
}

// STT configures speech-to-text
type STT struct {
	Model       string `yaml:"model" json:"model"`
	Language    string `yaml:"language" json:"language"`
	SmartFormat bool   `yaml:"smart_format" json:"smart_format"`
}

// LLM configures the language model
type LLM struct {
	Model       string  `yaml:"model" json:"model"`
	Temperature float64 `yaml:"temperature" json:"temperature"`
	MaxTokens   int     `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
}

// TTS configures text-to-speech
type TTS struct {
	Voice string  `yaml:"voice" json:"voice"`
	Speed float64 `yaml:"speed,omitempty" json:"speed,omitempty"`
}

// VAD configures voice activity detection, values in seconds
type VAD struct {
	MinSilenceDuration  float64 `yaml:"min_silence_duration" json:"min_silence_duration"`
	MinSpeakingDuration float64 `yaml:"min_speaking_duration" json:"min_speaking_duration"`
}

// Turn configures end-of-utterance detection, values in seconds
type Turn struct {
	MinEndOfUtteranceSilence float64 `yaml:"min_end_of_utterance_silence" json:"min_end_of_utterance_silence"`
	MaxEndOfUtteranceSilence float64 `yaml:"max_end_of_utterance_silence" json:"max_end_of_utterance_silence"`
}

// Default is the full-quality profile: multilingual transcription and the
// richer voice, at the cost of latency
func Default() Profile {
	return Profile{
		Name: "default",
		STT: STT{
			Model:       "nova-3",
			Language:    "multi",
			SmartFormat: true,
		},
		LLM: LLM{
			Model:       "gpt-4o-mini",
			Temperature: 0.7,
		},
		TTS: TTS{
			Voice: "ash",
		},
		VAD: VAD{
			MinSilenceDuration:  0.5,
			MinSpeakingDuration: 0.3,
		},
		Turn: Turn{
			MinEndOfUtteranceSilence: 0.8,
			MaxEndOfUtteranceSilence: 1.8,
		},
	}
}

// Fast is the latency-optimized profile: English-only transcription, capped
// responses, faster speech
func Fast() Profile {
	return Profile{
		Name: "fast",
		STT: STT{
			Model:       "nova-2",
			Language:    "en",
			SmartFormat: true,
		},
		LLM: LLM{
			Model:       "gpt-4o-mini",
			Temperature: 0.7,
			MaxTokens:   100,
		},
		TTS: TTS{
			Voice: "alloy",
			Speed: 1.2,
		},
		VAD: VAD{
			MinSilenceDuration:  0.3,
			MinSpeakingDuration: 0.2,
		},
		Turn: Turn{
			MinEndOfUtteranceSilence: 0.6,
			MaxEndOfUtteranceSilence: 1.2,
		},
	}
}

// ByName resolves a profile by its name
func ByName(name string) (Profile, error) {
	switch name {
	case "", "default":
		return Default(), nil
	case "fast":
		return Fast(), nil
	default:
		return Profile{}, fmt.Errorf("unknown profile %q (available: default, fast)", name)
	}
}

// YAML serializes the profile
func (p Profile) YAML() ([]byte, error) {
	return yaml.Marshal(p)
}

// Load parses a profile from YAML
func Load(data []byte) (Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("failed to parse profile: %w", err)
	}
	return p, nil
}
