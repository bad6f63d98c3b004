package notifier

import (
	"fmt"
	"time"

	"github.com/teyvat-tools/resin-bot/internal/i18n"
)

// TimeLayout renders local completion instants in user-facing texts.
const TimeLayout = "15:04 02.01.2006"

// CatalogMessages renders notification texts from the i18n catalog.
type CatalogMessages struct {
	tr i18n.Translator
}

// NewCatalogMessages builds a Messages implementation for the translator.
func NewCatalogMessages(tr i18n.Translator) *CatalogMessages {
	return &CatalogMessages{tr: tr}
}

func (m *CatalogMessages) ExpeditionComplete(name string, endLocal time.Time) string {
	return fmt.Sprintf(m.tr.T("notify.expedition_complete"), name, endLocal.Format(TimeLayout))
}

func (m *CatalogMessages) ResinNearCap(name string, current int, toFull time.Duration) string {
	return fmt.Sprintf(m.tr.T("notify.resin_near_cap"), name, current, FormatDuration(toFull))
}

func (m *CatalogMessages) ResinFull(name string) string {
	return fmt.Sprintf(m.tr.T("notify.resin_full"), name)
}

// FormatDuration renders a duration as "2h 40m" style text without seconds.
// Shared with the status command handlers.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	d = d.Round(time.Minute)
	hours := int(d / time.Hour)
	minutes := int(d % time.Hour / time.Minute)

	switch {
	case hours == 0:
		return fmt.Sprintf("%dm", minutes)
	case minutes == 0:
		return fmt.Sprintf("%dh", hours)
	default:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
}
