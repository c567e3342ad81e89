package models

// TeamFile is a hand-edited team definition stored as YAML.
type TeamFile struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Agents      []AgentSpec   `yaml:"agents"`
	Settings    *TeamSettings `yaml:"settings"`
}

type TeamSettings struct {
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	Timeout     int     `yaml:"timeout"`
}
