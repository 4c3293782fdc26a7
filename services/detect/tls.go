package detect

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/clearwatch/clearwatch/models"
	"go.uber.org/zap"
)

const tlsClientHello = "1"

// evaluateTLS inspects ClientHello records only. The version check takes
// priority over the SNI check.
func (e *Engine) evaluateTLS(f *models.NetworkFrame) *models.Event {
	layer := f.Layer("tls")
	if layer.Str("tls.handshake.type") != tlsClientHello {
		return nil
	}

	if raw := layer.Str("tls.record.version"); raw != "" && e.tlsMinVersion > 0 {
		detected, ok := tlsVersionFromRecord(raw)
		if !ok {
			// Known record versions are 0x0301..0x0304. Anything else is
			// flagged in the log rather than extrapolated into a number.
			e.logger.Warn("unrecognized TLS record version", zap.String("record_version", raw))
		} else if detected < e.tlsMinVersion {
			event := models.NewTLSWeakVersion(f.Time, f.Tuple(),
				fmt.Sprintf("%.1f", detected), e.tlsMinRaw)
			return &event
		}
	}

	if e.requireSNI && layer.Str("tls.handshake.extensions_server_name") == "" {
		event := models.NewTLSMissingSNI(f.Time, f.Tuple())
		return &event
	}
	return nil
}

// tlsVersionFromRecord maps a dissector record-version string such as
// "0x0303" onto the protocol version number (0x0301 -> 1.0, 0x0302 -> 1.1,
// 0x0303 -> 1.2, 0x0304 -> 1.3). Values outside that range return ok=false.
func tlsVersionFromRecord(raw string) (float64, bool) {
	value, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(raw), "0x"), 16, 32)
	if err != nil {
		return 0, false
	}
	if value < 0x0301 || value > 0x0304 {
		return 0, false
	}
	return 1.0 + float64(value-0x0301)/10.0, true
}
