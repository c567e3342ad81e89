// Package archive packages agent records and a workflow document into the
// two downloadable ZIP bundles.
package archive

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/mpataki/teamforge/internal/models"
	"github.com/mpataki/teamforge/internal/sanitize"
)

const (
	AssistantBundleName = "autogen_files.zip"
	CrewBundleName      = "crewai_files.zip"
)

// entryTime is stamped on every entry so identical input yields identical bytes.
var entryTime = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// SkillSource resolves skill identifiers to implementation files.
type SkillSource interface {
	// Lookup returns the file name of a registered skill.
	Lookup(name string) (file string, ok bool)
	ReadSource(name string) ([]byte, error)
}

// Bundle holds the two archives.
type Bundle struct {
	Assistant []byte
	Crew      []byte
}

type Packager struct {
	skills SkillSource
	logger *slog.Logger
}

// New returns a Packager. skills may be nil, in which case no skill files
// are bundled.
func New(skills SkillSource, logger *slog.Logger) *Packager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Packager{skills: skills, logger: logger.With("component", "archive")}
}

type entry struct {
	name string
	data []byte
}

// Package builds both archives in memory. Either both are returned or an
// error is.
func (p *Packager) Package(assistants []models.AssistantRecord, wf models.WorkflowDoc, crews []models.CrewRecord) (Bundle, error) {
	assistantEntries, err := p.assistantEntries(assistants, wf)
	if err != nil {
		return Bundle{}, err
	}

	crewEntries := make([]entry, 0, len(crews))
	for i, c := range crews {
		data, err := marshal(c)
		if err != nil {
			return Bundle{}, fmt.Errorf("failed to marshal crew record %d: %w", i, err)
		}
		crewEntries = append(crewEntries, entry{name: fmt.Sprintf("agents/agent_%d.json", i), data: data})
	}

	a, err := writeZip(assistantEntries)
	if err != nil {
		return Bundle{}, fmt.Errorf("failed to write assistant bundle: %w", err)
	}
	c, err := writeZip(crewEntries)
	if err != nil {
		return Bundle{}, fmt.Errorf("failed to write crew bundle: %w", err)
	}

	p.logger.Debug("packaged bundles", "agents", len(assistants), "assistant_bytes", len(a), "crew_bytes", len(c))
	return Bundle{Assistant: a, Crew: c}, nil
}

func (p *Packager) assistantEntries(assistants []models.AssistantRecord, wf models.WorkflowDoc) ([]entry, error) {
	var entries []entry

	for i, name := range AgentFileNames(assistants) {
		data, err := marshal(assistants[i])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal agent %q: %w", assistants[i].Config.Name, err)
		}
		entries = append(entries, entry{name: "agents/" + name, data: data})
	}

	skillEntries, err := p.skillEntries(assistants)
	if err != nil {
		return nil, err
	}
	entries = append(entries, skillEntries...)

	data, err := marshal(wf)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal workflow: %w", err)
	}
	entries = append(entries, entry{name: "workflows/" + sanitize.FileName(wf.Name) + ".json", data: data})

	return entries, nil
}

// skillEntries adds each referenced skill file once, sorted by skill name.
// Unregistered skills are skipped; unreadable registered ones are fatal.
func (p *Packager) skillEntries(assistants []models.AssistantRecord) ([]entry, error) {
	referenced := make(map[string]struct{})
	for _, a := range assistants {
		for _, s := range a.Skills {
			referenced[s] = struct{}{}
		}
	}
	names := make([]string, 0, len(referenced))
	for s := range referenced {
		names = append(names, s)
	}
	sort.Strings(names)

	var entries []entry
	seenFiles := make(map[string]bool)
	for _, name := range names {
		if p.skills == nil {
			p.logger.Warn("no skill registry, skipping skill", "skill", name)
			continue
		}
		file, ok := p.skills.Lookup(name)
		if !ok {
			p.logger.Warn("skill not registered, skipping", "skill", name)
			continue
		}
		if seenFiles[file] {
			continue
		}
		data, err := p.skills.ReadSource(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read skill %q: %w", name, err)
		}
		seenFiles[file] = true
		entries = append(entries, entry{name: "skills/" + file, data: data})
	}
	return entries, nil
}

// AgentFileNames returns a path-safe "{slug}.json" per record, in order.
// Repeated names get a numeric suffix starting at _2.
func AgentFileNames(assistants []models.AssistantRecord) []string {
	names := make([]string, 0, len(assistants))
	used := make(map[string]bool)
	for _, a := range assistants {
		base := sanitize.FileName(a.Config.Name)
		name := base
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		used[name] = true
		names = append(names, name+".json")
	}
	return names
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeZip(entries []entry) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.name,
			Method:   zip.Deflate,
			Modified: entryTime,
		})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(e.data); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
