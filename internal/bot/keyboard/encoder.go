package keyboard

import (
	"errors"
	"fmt"
	"strings"
)

// Telegram rejects callback data above 64 bytes, so the payload budget is
// tight: endpoint name, separator and payload all count against it.
const (
	CallbackDataSeparator  = ":"
	CallbackDataLimitBytes = 64
)

// EncodeCallback joins the endpoint identifier and its payload into callback
// data, e.g. ("exp_dur", "12") becomes "exp_dur:12". A payload-free button
// encodes to the bare endpoint name.
func EncodeCallback(unique, data string) (string, error) {
	payload := unique
	if data != "" {
		payload = unique + CallbackDataSeparator + data
	}

	if len(payload) > CallbackDataLimitBytes {
		return "", fmt.Errorf("callback data exceeds %d byte limit: got %d", CallbackDataLimitBytes, len(payload))
	}

	return payload, nil
}

// DecodeCallback splits callback data on the first separator. Payloads may
// themselves contain the separator, so only the first occurrence splits.
func DecodeCallback(callbackData string) (unique, data string, err error) {
	if callbackData == "" {
		return "", "", errors.New("callback data is empty")
	}

	unique, data, found := strings.Cut(callbackData, CallbackDataSeparator)
	if !found {
		return callbackData, "", nil
	}

	return unique, data, nil
}
