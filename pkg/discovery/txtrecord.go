package discovery

import (
	"fmt"
	"sort"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeTXT creates the TXT records for info.
func EncodeTXT(info *Info) TXTRecordMap {
	txt := TXTRecordMap{TXTKeyVersion: TXTVersion}
	if info.DeviceID != "" {
		txt[TXTKeyDeviceID] = info.DeviceID
	}
	if info.Name != "" {
		name := info.Name
		if len(name) > MaxTXTValueLen {
			name = name[:MaxTXTValueLen]
		}
		txt[TXTKeyName] = name
	}
	return txt
}

// DecodeTXT reads the TXT fields into p.
func DecodeTXT(txt TXTRecordMap, p *Peer) error {
	v, ok := txt[TXTKeyVersion]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyVersion)
	}
	if v != TXTVersion {
		return fmt.Errorf("%w: version %q", ErrInvalidTXT, v)
	}
	p.DeviceID = txt[TXTKeyDeviceID]
	p.Name = txt[TXTKeyName]
	return nil
}

// TXTRecordsToStrings converts a TXTRecordMap to "key=value" strings,
// sorted by key.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(result)
	return result
}

// StringsToTXTRecords parses a slice of "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		k, v, found := strings.Cut(s, "=")
		if found {
			txt[k] = v
		} else if k != "" {
			// Key without value (boolean flag)
			txt[k] = ""
		}
	}
	return txt
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInstanceNameTooLong)
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}
