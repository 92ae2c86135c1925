package core

import (
	"encoding/json"
	"strconv"
)

// fmtFloat renders a float for AnomalyAlert.Evidence values, which are
// plain strings (§3 AnomalyAlert.Evidence map[string]string).
func fmtFloat(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }

func fmtUint(v uint64) string { return strconv.FormatUint(v, 10) }

func marshalAlert(a AnomalyAlert) ([]byte, error) { return json.Marshal(a) }
