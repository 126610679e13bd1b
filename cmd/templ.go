package cmd

const HELP_TEMPL = `Usage: {{if .UsageText}}{{.UsageText}}{{else}}{{.HelpName}} {{if .VisibleFlags}}[global options]{{end}}{{if .Commands}} command [command options]{{end}} {{if .ArgsUsage}}{{.ArgsUsage}}{{else}}[arguments...]{{end}}{{end}}
{{.Description}}{{if .VisibleCommands}}
Commands:{{range .VisibleCategories}}{{if .Name}}

{{.Name}}:{{range .VisibleCommands}}
  {{join .Names ", "}}{{"\t"}}{{.Usage}}{{end}}{{else}}{{range .VisibleCommands}}
{{"\t"}}{{index .Names 0}}{{"\t:\t"}}{{.Usage}}{{end}}{{end}}{{end}}{{end}}{{if .VisibleFlags}}

Global Flags:{{range .VisibleFlags}}
  {{.}}{{end}}{{end}}

Use "{{.HelpName}} help <command>" for more information about any command.

`

const CMD_HELP_TEMPL = `{{if .Description}}{{.Description}}{{else}}{{.HelpName}} - {{.Usage}}

{{end}}Usage:
        {{.HelpName}} {{if .UsageText}}{{.UsageText}}{{else}}[arguments...]{{end}}{{if .VisibleFlags}}

Supported Flags:{{range .VisibleFlags}}
  {{.}}{{end}}{{end}}

`

const DESCRIPTION = `
asyncload runs a daemon that resolves widget class references in the
background, a few at a time and in priority order, and builds view
instances from them. This tool controls that daemon.
`

const DaemonDescription = `Starts the asyncload daemon in the foreground. It serves JSON-RPC over
HTTP and WebSocket until interrupted.
`

const SubmitDescription = `Queues a load of a widget class reference and, unless --detach is given,
waits until the view is built or the load fails.

Supported references:
  file://<path>         a descriptor below the loader root
  script://<path>       a JavaScript class below the script root
  catalog://<name>      a class stored in the catalog database
  http(s)://<url>       a descriptor fetched over HTTP
  ftp://<host>/<path>   a descriptor fetched over FTP
  sftp://<host>/<path>  a descriptor fetched over SFTP
`

const PreloadDescription = `Warms the daemon's class cache with one or more references without
building views.
`

const CancelDescription = `Cancels pending or active loads by request id, or all of them with --all.
`

const StatusDescription = `Shows whether a request is pending, active or cancelled.
`

const StatsDescription = `Shows queue sizes, limits, outcome counters and cache usage.
`

const LimitsDescription = `Changes the maximum number of concurrent loads and the per-load timeout.
`

const CacheDescription = `Inspects or clears the daemon's class cache.
`

const ViewDescription = `Lists the views built by completed loads, or removes one by id so the
daemon stops holding it.
`

const ConfigDescription = `Creates or prints the configuration file.
`
