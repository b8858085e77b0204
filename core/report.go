package core

import (
	"fmt"
	"strings"
)

const (
	OnlineMarker  = "🟢 ONLINE"
	OfflineMarker = "🔴 OFFLINE"
)

// FormatReport renders the notification text for payload. Devices keep the
// order they were reported in and names are inserted verbatim.
func FormatReport(payload Payload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "UniFi devices: %s\n", payload.Site)
	fmt.Fprintf(&b, "Mode: %s\n", payload.Mode)
	fmt.Fprintf(&b, "Online: %d/%d\n", payload.OnlineCount(), len(payload.Devices))
	b.WriteString("\n")
	for i, device := range payload.Devices {
		marker := OfflineMarker
		if device.Online {
			marker = OnlineMarker
		}
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "- %s: %s", device.Name, marker)
	}
	return b.String()
}
