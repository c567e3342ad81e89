package models

type CodeExecutionConfig struct {
	WorkDir   *string `json:"work_dir"`
	UseDocker bool    `json:"use_docker"`
}

// UserProxyConfig has llm_config fixed to false; the proxy never calls a model.
type UserProxyConfig struct {
	Name                    string              `json:"name"`
	LLMConfig               bool                `json:"llm_config"`
	HumanInputMode          string              `json:"human_input_mode"`
	MaxConsecutiveAutoReply int                 `json:"max_consecutive_auto_reply"`
	SystemMessage           string              `json:"system_message"`
	CodeExecutionConfig     CodeExecutionConfig `json:"code_execution_config"`
	DefaultAutoReply        string              `json:"default_auto_reply"`
}

type Sender struct {
	Type      string          `json:"type"`
	Config    UserProxyConfig `json:"config"`
	Timestamp string          `json:"timestamp"`
	UserID    string          `json:"user_id"`
	Skills    []string        `json:"skills"`
}

// WorkflowAgent is one participant of the group chat.
type WorkflowAgent struct {
	Type      string          `json:"type"`
	Config    AssistantConfig `json:"config"`
	Timestamp string          `json:"timestamp"`
	UserID    string          `json:"user_id"`
	Skills    []string        `json:"skills"`
}

type GroupChatConfig struct {
	Agents                 []WorkflowAgent `json:"agents"`
	AdminName              string          `json:"admin_name"`
	Messages               []string        `json:"messages"`
	MaxRound               int             `json:"max_round"`
	SpeakerSelectionMethod string          `json:"speaker_selection_method"`
	AllowRepeatSpeaker     bool            `json:"allow_repeat_speaker"`
}

type Receiver struct {
	Type            string          `json:"type"`
	Config          AssistantConfig `json:"config"`
	GroupChatConfig GroupChatConfig `json:"groupchat_config"`
	Timestamp       string          `json:"timestamp"`
	UserID          string          `json:"user_id"`
	Skills          []string        `json:"skills"`
}

// WorkflowDoc describes a turn-taking group chat. Agents[0] of the receiver's
// group chat is always the coordinator.
type WorkflowDoc struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Sender        Sender   `json:"sender"`
	Receiver      Receiver `json:"receiver"`
	Type          string   `json:"type"`
	UserID        string   `json:"user_id"`
	Timestamp     string   `json:"timestamp"`
	SummaryMethod string   `json:"summary_method"`
}
