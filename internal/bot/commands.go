package bot

// Command constants for Telegram bot commands.
const (
	CommandStart       = "/start"
	CommandExpedition  = "/expedition"
	CommandExp4        = "/exp4"
	CommandExp8        = "/exp8"
	CommandExp12       = "/exp12"
	CommandExp20       = "/exp20"
	CommandExpStatus   = "/expstatus"
	CommandResin       = "/resin"
	CommandResinStatus = "/resinstatus"
	CommandCancel      = "/cancel"
	CommandHelp        = "/help"
)

// CallbackExpeditionDuration prefixes inline button callbacks that carry an
// expedition duration in hours.
const CallbackExpeditionDuration = "exp_dur"
