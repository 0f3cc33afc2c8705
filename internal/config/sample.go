package config

// Sample is the annotated configuration printed by `hostlog config generate`
const Sample = `# hostlog configuration file
# Place this file at ./.hostlog.yaml, ~/.hostlog.yaml or
# ~/.config/hostlog/config.yaml

# Output format: "text" (default) or "ndjson"
format: text

# Progress verbosity, same as repeating -v
verbosity: 0

# Hide relay status notices ("starting to log", "Waiting on logger")
quiet: false

relay:
  # TCP port the remote log server listens on
  port: 19885

  # Fixed delay between connection attempts
  retry_interval: 100ms

  # Upper bound for a single connection attempt
  dial_timeout: 5s

  # Read size for the relayed stream
  chunk_size: 4096

  # "file" shares relay markers between processes, "memory" keeps them private
  marker_store: file
  # Runs sharing a marker_dir also clear each other's markers on completion
  # marker_dir: /tmp/hostlog

  # Task actions whose hosts get a log relay
  actions:
    - command
    - shell

  # Host variable holding the address to connect to
  address_var: ansible_host

  # Use the host name when address_var is not set for a host
  address_fallback: false

display:
  # Show task arguments in task banners
  args: false

  # Show skipped hosts and items
  skipped: true

console:
  # Address the console command listens on
  listen: ":19885"

  # How often a followed file is checked for new data
  poll_interval: 250ms
`
