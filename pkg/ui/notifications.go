package ui

import (
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
)

// Notification kinds accepted by NewNotifier
const (
	NotifyTerminal = "terminal"
	NotifyDesktop  = "desktop"
	NotifyNone     = "none"
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
	script := fmt.Sprintf(`display notification "%s" with title "%s"`, appleScriptQuote(message), appleScriptQuote(title))
	return exec.Command("osascript", "-e", script).Run()
}

func appleScriptQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
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
		[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("douyindl").Show($toast)
	`, xmlEscape(title), xmlEscape(message))

	return exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script).Run()
}

func xmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}

func platformSender() NotificationSender {
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

// Notifier handles end-of-batch notifications
type Notifier struct {
	out     io.Writer
	console bool
	sender  NotificationSender
}

// NewNotifier creates a Notifier for the given kind. "terminal" prints to w,
// "desktop" also raises a platform notification, "none" stays silent.
func NewNotifier(kind string, w io.Writer) *Notifier {
	if w == nil {
		w = Output
	}

	n := &Notifier{out: w}
	switch kind {
	case NotifyNone:
	case NotifyDesktop:
		n.console = true
		n.sender = platformSender()
	default:
		n.console = true
	}
	return n
}

// SendNotification sends a neutral notification
func (n *Notifier) SendNotification(title, message string) {
	n.send(title, message, Cyan, Yellow)
}

// SendError sends an error notification
func (n *Notifier) SendError(title, message string) {
	n.send(title, message, Red, Red)
}

// SendSuccess sends a success notification
func (n *Notifier) SendSuccess(title, message string) {
	n.send(title, message, Green, Green)
}

func (n *Notifier) send(title, message string, titleColor, msgColor func(a ...interface{}) string) {
	if n.console {
		fmt.Fprintf(n.out, "\n%s: %s\n", titleColor(title), msgColor(message))
	}

	if n.sender != nil {
		// notification failures are not fatal
		_ = n.sender.Send(title, message)
	}
}
