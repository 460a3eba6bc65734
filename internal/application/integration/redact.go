package integration

import (
	"bytes"
	"encoding/json"
	"strings"
)

const redactedValue = "[redacted]"

// contactKeys are redacted wherever they appear
var contactKeys = map[string]struct{}{
	"email":          {},
	"phone":          {},
	"mobile":         {},
	"phone_number":   {},
	"mobile_code":    {},
	"customer_email": {},
	"customer_phone": {},
	"customer_name":  {},
}

// personObjects hold a buyer or recipient; their name fields are redacted too
var personObjects = map[string]struct{}{
	"customer":  {},
	"receiver":  {},
	"consignee": {},
	"shipping":  {},
	"billing":   {},
	"address":   {},
}

var personNameKeys = map[string]struct{}{
	"name":       {},
	"first_name": {},
	"last_name":  {},
	"full_name":  {},
}

// RedactPayload replaces customer contact fields in a JSON body with a
// placeholder. Bodies that are not JSON are returned unchanged.
func RedactPayload(body []byte) []byte {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return body
	}
	out, err := json.Marshal(redactValue(doc, false))
	if err != nil {
		return body
	}
	return out
}

func redactValue(v any, inPerson bool) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			key := strings.ToLower(k)
			if _, ok := contactKeys[key]; ok && child != nil {
				t[k] = redactedValue
				continue
			}
			if _, ok := personNameKeys[key]; ok && inPerson && child != nil {
				t[k] = redactedValue
				continue
			}
			_, person := personObjects[key]
			t[k] = redactValue(child, person)
		}
		return t
	case []any:
		for i := range t {
			t[i] = redactValue(t[i], inPerson)
		}
		return t
	default:
		return v
	}
}
