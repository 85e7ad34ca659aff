package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"shortscraper/pkg/config"
)

const (
	vpnConnectButton = ".play-button"
	vpnStatusText    = ".connection-state__status-text"
	vpnConnected     = "Connected"
	vpnPollInterval  = time.Second
)

// PopupURL is the extension page that holds the connect button
func PopupURL(extensionID string) string {
	return fmt.Sprintf("chrome-extension://%s/popup/index.html", extensionID)
}

// activateVPN opens the extension popup, presses connect and polls the
// status text until it reports a connection or the activation timeout ends.
func (s *ChromeSession) activateVPN(ctx context.Context, vpn config.VPNConfig) error {
	timeout := vpn.ActivationTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	if err := s.Navigate(ctx, PopupURL(vpn.ExtensionID)); err != nil {
		return err
	}
	if err := s.Click(ctx, vpnConnectButton, timeout); err != nil {
		return fmt.Errorf("connect button not clickable: %w", err)
	}

	deadline := time.Now().Add(timeout)
	var status string
	for time.Now().Before(deadline) {
		err := s.run(ctx, vpnPollInterval, chromedp.Text(vpnStatusText, &status, chromedp.ByQuery))
		if err == nil && strings.Contains(status, vpnConnected) {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case <-time.After(vpnPollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("VPN not connected after %s (last status %q)", timeout, status)
}
