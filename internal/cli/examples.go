package cli

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExamplesCmd shows usage examples for hostlog commands
type ExamplesCmd struct {
	Command string `arg:"" optional:"" help:"Show examples for a specific command (run, relay, console, etc.)"`
	JSON    bool   `help:"Output as JSON for programmatic access"`
}

// Example represents a single usage example
type Example struct {
	Command     string `json:"command"`
	Description string `json:"description"`
	Output      string `json:"output,omitempty"`
	When        string `json:"when,omitempty"`
}

// CommandExamples holds examples for a single command
type CommandExamples struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Examples    []Example `json:"examples"`
}

// AllExamples contains examples for all commands
type AllExamples struct {
	Type      string            `json:"type"`
	Version   string            `json:"version"`
	Commands  []CommandExamples `json:"commands"`
	Workflows []WorkflowExample `json:"workflows"`
}

// WorkflowExample shows a multi-step workflow
type WorkflowExample struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	When        string   `json:"when"`
	Steps       []string `json:"steps"`
}

// exampleOrder is the order commands are listed in
var exampleOrder = []string{"run", "relay", "console", "markers", "doctor", "config", "completion", "version"}

var commandExamples = map[string]CommandExamples{
	"run": {
		Name:        "run",
		Description: "Render a runner event stream and relay the output of long-running remote commands",
		Examples: []Example{
			{
				Command:     "runner --events-ndjson site.yml | hostlog",
				Description: "Render progress from stdin; run is the default command",
				Output:      "Banners, per-host results and relayed lines like `12:00:01.250 [web-1] compiling`",
			},
			{
				Command:     "hostlog run --events events.ndjson -v",
				Description: "Replay a recorded event stream with result dumps",
			},
			{
				Command:     "hostlog run --no-relay < events.ndjson",
				Description: "Render progress only; never connect to hosts",
				When:        "Hosts are unreachable from this machine",
			},
			{
				Command:     "hostlog run --exclude '^DEBUG' --exclude-host 'db-*'",
				Description: "Hide noisy relayed lines and every db host",
			},
			{
				Command:     "hostlog run -f ndjson --markers memory",
				Description: "Machine-readable output with in-process marker bookkeeping",
				Output:      `{"type":"relay_line","schemaVersion":1,"host":"web-1","line":"compiling",...}`,
			},
		},
	},
	"relay": {
		Name:        "relay",
		Description: "Relay one host's log in the foreground, without markers",
		Examples: []Example{
			{
				Command:     "hostlog relay web-1 10.0.0.12",
				Description: "Stream web-1's log until the server hangs up",
			},
			{
				Command:     "hostlog relay web-1 10.0.0.12 --port 20000 --grep 'error|warn'",
				Description: "Use a non-default port and show only matching lines",
			},
		},
	},
	"console": {
		Name:        "console",
		Description: "Serve a log file to relay clients; runs on the remote host",
		Examples: []Example{
			{
				Command:     "hostlog console --file /tmp/console.log",
				Description: "Stream the file on :19885 and follow appended data",
			},
			{
				Command:     "hostlog console --file build.log --listen 127.0.0.1:20000 --poll-interval 1s",
				Description: "Bind to loopback on another port and poll less often",
			},
		},
	},
	"markers": {
		Name:        "markers",
		Description: "Inspect or clear relay markers",
		Examples: []Example{
			{
				Command:     "hostlog markers",
				Description: "List markers as a table",
			},
			{
				Command:     "hostlog markers clear web-1 web-2",
				Description: "Forget two hosts so the next qualifying task relays them again",
				When:        "A crashed run left markers behind",
			},
			{
				Command:     "hostlog markers clear",
				Description: "Remove every marker in the directory",
			},
		},
	},
	"doctor": {
		Name:        "doctor",
		Description: "Check configuration, relay markers and log server reachability",
		Examples: []Example{
			{
				Command:     "hostlog doctor",
				Description: "Validate the configuration and the marker directory",
			},
			{
				Command:     "hostlog doctor 10.0.0.12 10.0.0.13:20000",
				Description: "Also probe two log servers",
			},
		},
	},
	"config": {
		Name:        "config",
		Description: "Show or manage configuration",
		Examples: []Example{
			{Command: "hostlog config", Description: "Show the effective configuration"},
			{Command: "hostlog config path", Description: "Show which config file was loaded"},
			{Command: "hostlog config generate > .hostlog.yaml", Description: "Write a sample configuration"},
		},
	},
	"completion": {
		Name:        "completion",
		Description: "Generate shell completions",
		Examples: []Example{
			{Command: `eval "$(hostlog completion bash)"`, Description: "Enable bash completion"},
			{Command: "hostlog completion fish > ~/.config/fish/completions/hostlog.fish", Description: "Install fish completion"},
		},
	},
	"version": {
		Name:        "version",
		Description: "Show version information",
		Examples: []Example{
			{Command: "hostlog version -f ndjson", Description: "Version metadata as NDJSON"},
		},
	},
}

var workflows = []WorkflowExample{
	{
		Name:        "Watch a long build on remote hosts",
		Description: "See compiler output while a long shell task runs",
		When:        "A playbook runs a command or shell task that takes minutes",
		Steps: []string{
			"1. On each host, start: hostlog console --file /tmp/console.log",
			"2. Have the remote command append to /tmp/console.log",
			"3. Locally: runner --events-ndjson site.yml | hostlog",
			"4. Lines appear as `HH:MM:SS.mmm [host] line` until the task ends",
		},
	},
	{
		Name:        "Recover after a crashed run",
		Description: "Markers left behind keep relays from starting",
		When:        "Relays no longer start for some hosts",
		Steps: []string{
			"1. hostlog doctor",
			"2. hostlog markers",
			"3. hostlog markers clear",
		},
	},
}

// Run executes the examples command
func (c *ExamplesCmd) Run(globals *Globals) error {
	if c.Command != "" {
		if _, ok := commandExamples[c.Command]; !ok {
			return fmt.Errorf("unknown command: %s\nAvailable: %s", c.Command, strings.Join(exampleOrder, ", "))
		}
	}
	if c.JSON {
		return c.outputJSON(globals)
	}
	return c.outputText(globals)
}

func (c *ExamplesCmd) selected() []CommandExamples {
	if c.Command != "" {
		return []CommandExamples{commandExamples[c.Command]}
	}
	all := make([]CommandExamples, 0, len(exampleOrder))
	for _, name := range exampleOrder {
		all = append(all, commandExamples[name])
	}
	return all
}

func (c *ExamplesCmd) outputJSON(globals *Globals) error {
	all := AllExamples{
		Type:      "examples",
		Version:   Version,
		Commands:  c.selected(),
		Workflows: workflows,
	}

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(globals.Stdout, string(data))
	return err
}

func (c *ExamplesCmd) outputText(globals *Globals) error {
	var sb strings.Builder

	if c.Command == "" {
		sb.WriteString("HOSTLOG USAGE EXAMPLES\n")
		sb.WriteString("======================\n\n")
	}
	for _, cmd := range c.selected() {
		c.formatCommandExamples(&sb, cmd)
		sb.WriteString("\n")
	}
	if c.Command == "" {
		sb.WriteString("WORKFLOWS\n")
		sb.WriteString("---------\n\n")
		for _, wf := range workflows {
			fmt.Fprintf(&sb, "## %s\n", wf.Name)
			fmt.Fprintf(&sb, "%s\n", wf.Description)
			fmt.Fprintf(&sb, "When: %s\n\n", wf.When)
			for _, step := range wf.Steps {
				fmt.Fprintf(&sb, "  %s\n", step)
			}
			sb.WriteString("\n")
		}
	}

	_, err := fmt.Fprint(globals.Stdout, sb.String())
	return err
}

func (c *ExamplesCmd) formatCommandExamples(sb *strings.Builder, cmd CommandExamples) {
	fmt.Fprintf(sb, "## %s\n", strings.ToUpper(cmd.Name))
	fmt.Fprintf(sb, "%s\n\n", cmd.Description)

	for _, ex := range cmd.Examples {
		fmt.Fprintf(sb, "  %s\n", ex.Command)
		fmt.Fprintf(sb, "    %s\n", ex.Description)
		if ex.Output != "" {
			fmt.Fprintf(sb, "    Output: %s\n", ex.Output)
		}
		if ex.When != "" {
			fmt.Fprintf(sb, "    When: %s\n", ex.When)
		}
		sb.WriteString("\n")
	}
}
