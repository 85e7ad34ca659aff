package ui

import (
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"

	"shortscraper/pkg/config"
)

// NotificationSender interface for platform-specific notification implementations
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	return exec.Command("notify-send", title, message).Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	return exec.Command("osascript", "-e", script).Run()
}

// WindowsNotificationSender sends notifications on Windows using PowerShell
type WindowsNotificationSender struct{}

func (w *WindowsNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`
		[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
		[Windows.Data.Xml.Dom.XmlDocument, Windows.Data.Xml.Dom.XmlDocument, ContentType = WindowsRuntime] | Out-Null
		$xml = @"
<toast>
	<visual>
		<binding template="ToastText02">
			<text id="1">%s</text>
			<text id="2">%s</text>
		</binding>
	</visual>
</toast>
"@
		$doc = [Windows.Data.Xml.Dom.XmlDocument]::new()
		$doc.LoadXml($xml)
		$toast = [Windows.UI.Notifications.ToastNotification]::new($doc)
		[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("shortscraper").Show($toast)
	`, title, message)

	return exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script).Run()
}

// PlatformSender returns the sender for the current OS, nil when unsupported
func PlatformSender() NotificationSender {
	switch runtime.GOOS {
	case "linux":
		return &LinuxNotificationSender{}
	case "darwin":
		return &MacOSNotificationSender{}
	case "windows":
		return &WindowsNotificationSender{}
	default:
		return nil
	}
}

// Notifier prints run notifications and, in desktop mode, forwards them
// to the OS notification center
type Notifier struct {
	enabled bool
	out     io.Writer
	sender  NotificationSender
}

// NewNotifier creates a Notifier for the configured notification type
func NewNotifier(cfg config.NotificationConfig) *Notifier {
	n := &Notifier{out: Out}
	switch strings.ToLower(cfg.Type) {
	case "none":
		return n
	case "desktop":
		n.sender = PlatformSender()
	}
	n.enabled = cfg.Enabled
	return n
}

// NewNotifierWithSender creates an enabled Notifier that writes to out and
// forwards to sender, which may be nil
func NewNotifierWithSender(out io.Writer, sender NotificationSender) *Notifier {
	return &Notifier{enabled: true, out: out, sender: sender}
}

// SendNotification sends a desktop notification and prints to console
func (n *Notifier) SendNotification(title, message string) {
	n.send(Cyan(title), Yellow(message), title, message)
}

// SendError sends an error notification
func (n *Notifier) SendError(title, message string) {
	n.send(Red(title), Red(message), title, message)
}

// SendSuccess sends a success notification
func (n *Notifier) SendSuccess(title, message string) {
	n.send(Green(title), Green(message), title, message)
}

func (n *Notifier) send(coloredTitle, coloredMessage, title, message string) {
	if !n.enabled {
		return
	}
	fmt.Fprintf(n.out, "\n%s: %s\n", coloredTitle, coloredMessage)

	if n.sender != nil {
		// notifications are best effort
		_ = n.sender.Send(title, message)
	}
}

// RunFinished announces the end of a run according to its exit code
func (n *Notifier) RunFinished(exitCode, written, workers int) {
	const title = "shortscraper"
	switch exitCode {
	case 0:
		n.SendSuccess(title, fmt.Sprintf("Run complete: %d items written by %d workers", written, workers))
	case 2:
		n.SendError(title, "Run finished without collecting anything")
	case 3:
		n.SendError(title, "Run finished but every output write failed; check the spool")
	default:
		n.SendNotification(title, fmt.Sprintf("Run finished with exit code %d", exitCode))
	}
}
