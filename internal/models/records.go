package models

// ModelRef is one entry of an llm_config config_list.
type ModelRef struct {
	Model string `json:"model"`
}

type LLMConfig struct {
	ConfigList  []ModelRef `json:"config_list"`
	Temperature float64    `json:"temperature"`
	Timeout     int        `json:"timeout"`
	CacheSeed   int        `json:"cache_seed"`
}

type AssistantConfig struct {
	Name                    string    `json:"name"`
	LLMConfig               LLMConfig `json:"llm_config"`
	HumanInputMode          string    `json:"human_input_mode"`
	MaxConsecutiveAutoReply int       `json:"max_consecutive_auto_reply"`
	SystemMessage           string    `json:"system_message"`
}

// AssistantRecord is the assistant-framework projection of an AgentSpec.
// Only the records package builds these.
type AssistantRecord struct {
	Type        string          `json:"type"`
	Config      AssistantConfig `json:"config"`
	Description string          `json:"description"`
	Skills      []string        `json:"skills"`
	Tools       []string        `json:"tools"`
}

// CrewRecord is the crew-framework projection of an AgentSpec.
type CrewRecord struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Skills          []string `json:"skills"`
	Tools           []string `json:"tools"`
	Verbose         bool     `json:"verbose"`
	AllowDelegation bool     `json:"allow_delegation"`
}
