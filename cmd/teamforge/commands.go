package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/mpataki/teamforge/internal/discussion"
	"github.com/mpataki/teamforge/internal/models"
	"github.com/mpataki/teamforge/internal/orchestrator"
	"github.com/mpataki/teamforge/internal/storage"
	"github.com/mpataki/teamforge/internal/team"
)

func newGenerateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <request>",
		Short: "Generate and package a team for a request",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, nil)
			if err != nil {
				return err
			}
			defer e.Close()

			chat, _ := cmd.Flags().GetBool("chat")

			sess := e.orch.NewSession()
			fmt.Printf("Generating team with %s...\n", e.cfg.Model)
			res, err := e.orch.Run(cmd.Context(), sess, strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("generation failed: %w", err)
			}

			fmt.Printf("Created run #%d\n", res.Run.ID)
			fmt.Printf("Rephrased: %s\n\n", res.Run.Rephrased)
			printTeam(res.Team)
			fmt.Printf("\nWorkspace: %s\n", res.Workspace.Path)
			fmt.Printf("Assistant bundle: %s\n", res.Workspace.AssistantBundlePath())
			fmt.Printf("Crew bundle: %s\n", res.Workspace.CrewBundlePath())

			if !chat {
				return nil
			}
			fmt.Println()
			return runChat(cmd, e, sess, orchestrator.ChatOptions{StopOnTerminate: true})
		},
	}
	cmd.Flags().Bool("chat", false, "Start a round-robin chat once the team is ready")
	return cmd
}

func newPackageCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "package <team.yaml|team-name|run-id>",
		Short: "Package a team file or rebuild the bundles of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, nil)
			if err != nil {
				return err
			}
			defer e.Close()

			var res *orchestrator.Result
			if id, perr := parseRunID(args[0]); perr == nil {
				res, err = e.orch.Repackage(id)
			} else {
				var tf *models.TeamFile
				tf, err = findTeam(e, args[0])
				if err != nil {
					return err
				}
				res, err = e.orch.Import(tf)
			}
			if err != nil {
				return fmt.Errorf("failed to package: %w", err)
			}

			fmt.Printf("Packaged run #%d (%d agents)\n", res.Run.ID, len(res.Team))
			fmt.Printf("Assistant bundle: %s\n", res.Workspace.AssistantBundlePath())
			fmt.Printf("Crew bundle: %s\n", res.Workspace.CrewBundlePath())
			return nil
		},
	}
}

// findTeam resolves a path to a team file, or a team name from the team
// directories.
func findTeam(e *env, ref string) (*models.TeamFile, error) {
	if _, err := os.Stat(ref); err == nil {
		tf, err := team.Parse(ref)
		if err != nil {
			return nil, err
		}
		return tf, team.Validate(tf)
	}

	teams, err := team.LoadAll(e.cfg.TeamDirs())
	if err != nil {
		return nil, err
	}
	tf, ok := teams[ref]
	if !ok {
		return nil, fmt.Errorf("team %q not found", ref)
	}
	return tf, team.Validate(tf)
}

func newExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "Write the team of a run as an editable team file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRunID(args[0])
			if err != nil {
				return err
			}
			e, err := openEnv(cmd, nil)
			if err != nil {
				return err
			}
			defer e.Close()

			run, err := e.orch.GetRun(id)
			if err != nil {
				return fmt.Errorf("failed to get run: %w", err)
			}

			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				name = fmt.Sprintf("run-%d", run.ID)
			}
			data, err := team.Marshal(&models.TeamFile{
				Name:        name,
				Description: run.Request,
				Agents:      run.Team,
				Settings: &models.TeamSettings{
					Model:       e.cfg.Model,
					Temperature: e.cfg.Temperature,
					Timeout:     e.cfg.AgentTimeout,
				},
			})
			if err != nil {
				return err
			}

			out, _ := cmd.Flags().GetString("output")
			if out == "" {
				_, err = os.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(out, data, 0644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "File to write (default: stdout)")
	cmd.Flags().String("name", "", "Team name (default: run-<id>)")
	return cmd
}

func newAskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <run-id> <agent>",
		Short: "Have one agent respond to the discussion",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRunID(args[0])
			if err != nil {
				return err
			}
			e, err := openEnv(cmd, nil)
			if err != nil {
				return err
			}
			defer e.Close()

			sess, err := e.orch.LoadSession(id)
			if err != nil {
				return err
			}
			idx, err := sess.Agent(args[1])
			if err != nil {
				return err
			}
			sess.UserInput, _ = cmd.Flags().GetString("input")
			sess.ReferenceURL, _ = cmd.Flags().GetString("url")

			fmt.Printf("%s:\n\n", sess.Team[idx].Name)
			if _, err := e.orch.Ask(cmd.Context(), sess, idx, printFragment); err != nil {
				return err
			}
			fmt.Println()
			return nil
		},
	}
	cmd.Flags().StringP("input", "i", "", "Additional input for the agent")
	cmd.Flags().String("url", "", "Reference URL whose text is included with the input")
	return cmd
}

func newChatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat <run-id>",
		Short: "Run a round-robin chat between the agents of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRunID(args[0])
			if err != nil {
				return err
			}
			e, err := openEnv(cmd, nil)
			if err != nil {
				return err
			}
			defer e.Close()

			sess, err := e.orch.LoadSession(id)
			if err != nil {
				return err
			}

			opts := orchestrator.ChatOptions{}
			opts.Turns, _ = cmd.Flags().GetInt("turns")
			opts.StopOnTerminate, _ = cmd.Flags().GetBool("stop-on-terminate")
			opts.InitialMessage, _ = cmd.Flags().GetString("message")
			return runChat(cmd, e, sess, opts)
		},
	}
	cmd.Flags().Int("turns", 0, "Number of turns (default: twice the team size)")
	cmd.Flags().Bool("stop-on-terminate", false, "Stop once an agent says TERMINATE")
	cmd.Flags().StringP("message", "m", "", "Opening message (default: the rephrased request)")
	return cmd
}

func runChat(cmd *cobra.Command, e *env, sess *orchestrator.Session, opts orchestrator.ChatOptions) error {
	opts.OnTurn = func(turn int, speaker string) {
		if turn > 0 {
			fmt.Println()
		}
		fmt.Printf("\n[%d] %s:\n\n", turn+1, speaker)
	}
	opts.OnFragment = printFragment

	res, err := e.orch.AutoChat(cmd.Context(), sess, opts)
	if err != nil {
		return err
	}
	fmt.Printf("\n\nChat finished after %d turns", res.Turns)
	if res.Terminated {
		fmt.Print(" (terminated)")
	}
	fmt.Println()
	if sess.DiscussionName != "" {
		fmt.Printf("Discussion saved as %s\n", sess.DiscussionName)
	}
	return nil
}

func printFragment(s string) {
	fmt.Print(s)
}

func newRefineCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refine <run-id> <agent>",
		Short: "Rewrite an agent's description in light of the discussion",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRunID(args[0])
			if err != nil {
				return err
			}
			e, err := openEnv(cmd, nil)
			if err != nil {
				return err
			}
			defer e.Close()

			sess, err := e.orch.LoadSession(id)
			if err != nil {
				return err
			}
			idx, err := sess.Agent(args[1])
			if err != nil {
				return err
			}

			desc, err := e.orch.Refine(cmd.Context(), sess, idx)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s\n", sess.Team[idx].Name, desc)
			return nil
		},
	}
}

func newRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <run-id> <agent>",
		Short: "Remove an agent from a run and rebuild its bundles",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRunID(args[0])
			if err != nil {
				return err
			}
			e, err := openEnv(cmd, nil)
			if err != nil {
				return err
			}
			defer e.Close()

			sess, err := e.orch.LoadSession(id)
			if err != nil {
				return err
			}
			idx, err := sess.Agent(args[1])
			if err != nil {
				return err
			}
			name := sess.Team[idx].Name
			if err := e.orch.RemoveAgent(sess, idx); err != nil {
				return err
			}
			fmt.Printf("Removed %s from run #%d (%d agents left)\n", name, id, len(sess.Team))
			return nil
		},
	}
}

func newModelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List models available on the Ollama server",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, nil)
			if err != nil {
				return err
			}
			defer e.Close()

			list, err := e.client.ListModels(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list models: %w", err)
			}
			if len(list) == 0 {
				fmt.Println("No models found.")
				return nil
			}
			for _, m := range list {
				marker := " "
				if m.Name == e.cfg.Model {
					marker = "*"
				}
				fmt.Printf("%s %-40s %8.1f MB\n", marker, m.Name, float64(m.Size)/(1<<20))
			}
			return nil
		},
	}
}

func newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, nil)
			if err != nil {
				return err
			}
			defer e.Close()

			limit, _ := cmd.Flags().GetInt("limit")
			runs, err := e.orch.ListRuns(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("No runs found.")
				return nil
			}
			for _, run := range runs {
				fmt.Printf("#%d [%s] %s %d agents  %s\n",
					run.ID, run.Status, storage.FormatTimeAgo(run.CreatedAt), len(run.Team),
					truncate(run.Request, 50))
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "Maximum number of runs")
	return cmd
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <run-id>",
		Short: "Show a run, its team and its interactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRunID(args[0])
			if err != nil {
				return err
			}
			e, err := openEnv(cmd, nil)
			if err != nil {
				return err
			}
			defer e.Close()

			run, err := e.orch.GetRun(id)
			if err != nil {
				return fmt.Errorf("failed to get run: %w", err)
			}

			fmt.Printf("Run #%d\n", run.ID)
			fmt.Printf("Status: %s\n", run.Status)
			fmt.Printf("Trace: %s\n", run.TraceID)
			fmt.Printf("Model: %s\n", run.Model)
			fmt.Printf("Request: %s\n", run.Request)
			if run.Rephrased != "" {
				fmt.Printf("Rephrased: %s\n", run.Rephrased)
			}
			if run.WorkspacePath != "" {
				fmt.Printf("Workspace: %s\n", run.WorkspacePath)
			}
			if run.Error != "" {
				fmt.Printf("Error: %s\n", run.Error)
			}

			if len(run.Team) > 0 {
				fmt.Println()
				printTeam(run.Team)
			}

			ins, err := e.orch.GetInteractions(id)
			if err != nil {
				return err
			}
			if len(ins) > 0 {
				fmt.Println("\nInteractions:")
				for _, in := range ins {
					fmt.Printf("  %d. %s [%s]\n", in.SequenceNum, in.AgentName, in.Status)
				}
			}
			return nil
		},
	}
}

func printTeam(t models.Team) {
	fmt.Println("Team:")
	for i, a := range t {
		fmt.Printf("  %d. %s (%s)\n", i+1, a.Name, a.Slug())
		fmt.Printf("     %s\n", a.Description)
		if len(a.Skills) > 0 {
			fmt.Printf("     skills: %s\n", strings.Join(a.Skills, ", "))
		}
		if len(a.Tools) > 0 {
			fmt.Printf("     tools: %s\n", strings.Join(a.Tools, ", "))
		}
	}
}

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a run, its workspace and its discussion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRunID(args[0])
			if err != nil {
				return err
			}
			e, err := openEnv(cmd, nil)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.orch.DeleteRun(id); err != nil {
				return fmt.Errorf("failed to delete run: %w", err)
			}
			fmt.Printf("Deleted run #%d\n", id)
			return nil
		},
	}
}

func newDiscussionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discussions [name]",
		Short: "List saved discussions or print one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, nil)
			if err != nil {
				return err
			}
			defer e.Close()

			store := discussion.NewStore(e.cfg.DiscussionsDir())
			if len(args) == 0 {
				names, err := store.List()
				if err != nil {
					return err
				}
				if len(names) == 0 {
					fmt.Println("No discussions saved.")
					return nil
				}
				for _, n := range names {
					fmt.Println(n)
				}
				return nil
			}

			history, err := store.Load(args[0])
			if errors.Is(err, discussion.ErrNotFound) {
				return fmt.Errorf("discussion %q not found", args[0])
			}
			if err != nil {
				return err
			}

			if render, _ := cmd.Flags().GetBool("render"); render {
				out, err := glamour.Render(history, "dark")
				if err == nil {
					history = out
				}
			}
			fmt.Print(history)

			if wb, _ := cmd.Flags().GetBool("whiteboard"); wb {
				fmt.Println("\n--- whiteboard ---")
				fmt.Println(discussion.Restore(history).Whiteboard())
			}
			return nil
		},
	}
	cmd.Flags().Bool("render", false, "Render the discussion as markdown")
	cmd.Flags().Bool("whiteboard", false, "Also print code extracted from the last turn")
	return cmd
}

func newSkillsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "skills",
		Short: "List registered skills",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, nil)
			if err != nil {
				return err
			}
			defer e.Close()

			names := e.skills.Names()
			if len(names) == 0 {
				fmt.Printf("No skills in %s\n", e.skills.Dir())
				return nil
			}
			for _, n := range names {
				s, _ := e.skills.Get(n)
				kind := "source"
				if s.Script != "" {
					kind = "lua"
				}
				fmt.Printf("%-30s %-6s %s\n", n, kind, s.Description)
			}
			return nil
		},
	}
}

func newTeamsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "teams",
		Short: "List team files in the team directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, nil)
			if err != nil {
				return err
			}
			defer e.Close()

			teams, err := team.LoadAll(e.cfg.TeamDirs())
			if err != nil {
				return err
			}
			if len(teams) == 0 {
				fmt.Println("No team files found.")
				return nil
			}

			names := make([]string, 0, len(teams))
			for n := range teams {
				names = append(names, n)
			}
			sort.Strings(names)
			for _, n := range names {
				tf := teams[n]
				fmt.Printf("%-24s %2d agents  %s\n", n, len(tf.Agents), truncate(tf.Description, 50))
			}
			return nil
		},
	}
}
