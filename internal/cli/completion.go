package cli

import (
	"fmt"
)

// CompletionCmd generates shell completions
type CompletionCmd struct {
	Shell string `arg:"" enum:"bash,zsh,fish" help:"Shell type (bash, zsh, fish)"`
}

// Run executes the completion command
func (c *CompletionCmd) Run(globals *Globals) error {
	var script string
	switch c.Shell {
	case "bash":
		script = bashCompletion
	case "zsh":
		script = zshCompletion
	case "fish":
		script = fishCompletion
	default:
		return fmt.Errorf("unsupported shell: %s", c.Shell)
	}
	_, err := fmt.Fprint(globals.Stdout, script)
	return err
}

const bashCompletion = `# hostlog bash completion script
# Add to ~/.bashrc or ~/.bash_profile:
#   eval "$(hostlog completion bash)"

_hostlog_completions() {
    local cur prev words cword
    _init_completion || return

    local commands="run relay console markers config doctor examples version completion"
    local global_flags="-f --format -v --verbose -q --quiet --config"
    local filter_flags="-g --grep -x --exclude --exclude-host"

    case "${prev}" in
        hostlog)
            COMPREPLY=($(compgen -W "${commands}" -- "${cur}"))
            return
            ;;
        -f|--format)
            COMPREPLY=($(compgen -W "ndjson text" -- "${cur}"))
            return
            ;;
        --markers)
            COMPREPLY=($(compgen -W "file memory" -- "${cur}"))
            return
            ;;
        -e|--events|--file|--config)
            _filedir
            return
            ;;
        --marker-dir|--dir)
            _filedir -d
            return
            ;;
        markers)
            COMPREPLY=($(compgen -W "list clear" -- "${cur}"))
            return
            ;;
        config)
            COMPREPLY=($(compgen -W "show path generate" -- "${cur}"))
            return
            ;;
        completion)
            COMPREPLY=($(compgen -W "bash zsh fish" -- "${cur}"))
            return
            ;;
    esac

    case "${words[1]}" in
        run)
            COMPREPLY=($(compgen -W "-e --events --port --markers --marker-dir --display-args --no-relay ${filter_flags} ${global_flags}" -- "${cur}"))
            ;;
        relay)
            COMPREPLY=($(compgen -W "--port ${filter_flags} ${global_flags}" -- "${cur}"))
            ;;
        console)
            COMPREPLY=($(compgen -W "--file --listen --poll-interval ${global_flags}" -- "${cur}"))
            ;;
        markers)
            COMPREPLY=($(compgen -W "--dir ${global_flags}" -- "${cur}"))
            ;;
        *)
            COMPREPLY=($(compgen -W "${commands} ${global_flags}" -- "${cur}"))
            ;;
    esac
}

complete -F _hostlog_completions hostlog
`

const zshCompletion = `#compdef hostlog
# hostlog zsh completion script
# Add to ~/.zshrc:
#   eval "$(hostlog completion zsh)"

_hostlog() {
    local -a commands
    commands=(
        'run:Render a runner event stream and relay remote command logs'
        'relay:Relay one host'"'"'s log in the foreground'
        'console:Serve a log file to relay clients (remote side)'
        'markers:Inspect or clear relay markers'
        'config:Show or manage configuration'
        'doctor:Check configuration, relay markers and log servers'
        'examples:Show usage examples'
        'version:Show version information'
        'completion:Generate shell completions'
    )

    local -a global_opts
    global_opts=(
        '-f[Output format]:format:(ndjson text)'
        '--format[Output format]:format:(ndjson text)'
        '*-v[Increase verbosity]'
        '*--verbose[Increase verbosity]'
        '-q[Hide relay status notices]'
        '--quiet[Hide relay status notices]'
        '--config[Configuration file]:file:_files'
    )

    local -a filter_opts
    filter_opts=(
        '*--grep[Only show relayed lines matching regex]:pattern:'
        '*--exclude[Hide relayed lines matching regex]:pattern:'
        '*--exclude-host[Hide lines relayed from host]:host:'
    )

    _arguments -C \
        $global_opts \
        '1: :->command' \
        '*:: :->args'

    case $state in
        command)
            _describe 'command' commands
            ;;
        args)
            case $words[1] in
                run)
                    _arguments \
                        '--events[Runner event stream]:file:_files' \
                        '--port[Remote log server port]:port:' \
                        '--markers[Marker store]:store:(file memory)' \
                        '--marker-dir[Marker directory]:dir:_files -/' \
                        '--display-args[Show task arguments]' \
                        '--no-relay[Render progress only]' \
                        $filter_opts \
                        $global_opts
                    ;;
                relay)
                    _arguments \
                        '1:host:' \
                        '2:address:_hosts' \
                        '--port[Remote log server port]:port:' \
                        $filter_opts \
                        $global_opts
                    ;;
                console)
                    _arguments \
                        '--file[Log file to stream]:file:_files' \
                        '--listen[Listen address]:address:' \
                        '--poll-interval[File poll interval]:duration:' \
                        $global_opts
                    ;;
                markers)
                    _arguments '1:action:(list clear)' '--dir[Marker directory]:dir:_files -/'
                    ;;
                config)
                    _arguments '1:action:(show path generate)'
                    ;;
                completion)
                    _arguments '1:shell:(bash zsh fish)'
                    ;;
            esac
            ;;
    esac
}

compdef _hostlog hostlog
`

const fishCompletion = `# hostlog fish completion script
# Add to ~/.config/fish/completions/hostlog.fish

# Disable file completion by default
complete -c hostlog -f

# Commands
complete -c hostlog -n "__fish_use_subcommand" -a "run" -d "Render a runner event stream and relay remote command logs"
complete -c hostlog -n "__fish_use_subcommand" -a "relay" -d "Relay one host's log in the foreground"
complete -c hostlog -n "__fish_use_subcommand" -a "console" -d "Serve a log file to relay clients"
complete -c hostlog -n "__fish_use_subcommand" -a "markers" -d "Inspect or clear relay markers"
complete -c hostlog -n "__fish_use_subcommand" -a "config" -d "Show or manage configuration"
complete -c hostlog -n "__fish_use_subcommand" -a "doctor" -d "Check configuration, relay markers and log servers"
complete -c hostlog -n "__fish_use_subcommand" -a "examples" -d "Show usage examples"
complete -c hostlog -n "__fish_use_subcommand" -a "version" -d "Show version information"
complete -c hostlog -n "__fish_use_subcommand" -a "completion" -d "Generate shell completions"

# Global flags
complete -c hostlog -s f -l format -d "Output format" -xa "ndjson text"
complete -c hostlog -s v -l verbose -d "Increase verbosity"
complete -c hostlog -s q -l quiet -d "Hide relay status notices"
complete -c hostlog -l config -d "Configuration file" -r -F

# Run command
complete -c hostlog -n "__fish_seen_subcommand_from run" -s e -l events -d "Runner event stream" -r -F
complete -c hostlog -n "__fish_seen_subcommand_from run" -l port -d "Remote log server port" -x
complete -c hostlog -n "__fish_seen_subcommand_from run" -l markers -d "Marker store" -xa "file memory"
complete -c hostlog -n "__fish_seen_subcommand_from run" -l marker-dir -d "Marker directory" -r -a "(__fish_complete_directories)"
complete -c hostlog -n "__fish_seen_subcommand_from run" -l display-args -d "Show task arguments"
complete -c hostlog -n "__fish_seen_subcommand_from run" -l no-relay -d "Render progress only"

# Relay filters
complete -c hostlog -n "__fish_seen_subcommand_from run relay" -s g -l grep -d "Only show relayed lines matching regex" -x
complete -c hostlog -n "__fish_seen_subcommand_from run relay" -s x -l exclude -d "Hide relayed lines matching regex" -x
complete -c hostlog -n "__fish_seen_subcommand_from run relay" -l exclude-host -d "Hide lines relayed from host" -x

# Console command
complete -c hostlog -n "__fish_seen_subcommand_from console" -l file -d "Log file to stream" -r -F
complete -c hostlog -n "__fish_seen_subcommand_from console" -l listen -d "Listen address" -x
complete -c hostlog -n "__fish_seen_subcommand_from console" -l poll-interval -d "File poll interval" -x

# Markers and config
complete -c hostlog -n "__fish_seen_subcommand_from markers" -a "list clear"
complete -c hostlog -n "__fish_seen_subcommand_from markers" -l dir -d "Marker directory" -r -a "(__fish_complete_directories)"
complete -c hostlog -n "__fish_seen_subcommand_from config" -a "show path generate"

# Completion command
complete -c hostlog -n "__fish_seen_subcommand_from completion" -a "bash zsh fish"
`
