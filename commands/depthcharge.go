package commands

type DepthChargeCommand struct {
	Scan    ScanCommand    `command:"scan" description:"Scan a repository's full history for secrets"`
	Update  UpdateCommand  `command:"update" description:"Update depthcharge to the latest version"`
	Version VersionCommand `command:"version" description:"Displays depthcharge version" alias:"V"`
}

var DepthCharge DepthChargeCommand
