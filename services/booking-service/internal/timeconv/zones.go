package timeconv

import (
	"sort"
	"strings"
	"time"
)

// commonZones is the list offered to guests when they pick a timezone. Any valid IANA
// name is accepted on input; this list only drives the picker.
var commonZones = []string{
	"UTC",
	"Africa/Cairo", "Africa/Johannesburg", "Africa/Lagos", "Africa/Nairobi",
	"America/Anchorage", "America/Argentina/Buenos_Aires", "America/Bogota", "America/Chicago",
	"America/Denver", "America/Halifax", "America/Los_Angeles", "America/Mexico_City",
	"America/New_York", "America/Phoenix", "America/Sao_Paulo", "America/St_Johns", "America/Toronto",
	"Asia/Bangkok", "Asia/Dhaka", "Asia/Dubai", "Asia/Hong_Kong", "Asia/Jakarta", "Asia/Karachi",
	"Asia/Kathmandu", "Asia/Kolkata", "Asia/Manila", "Asia/Seoul", "Asia/Shanghai", "Asia/Singapore",
	"Asia/Tehran", "Asia/Tokyo",
	"Atlantic/Reykjavik",
	"Australia/Adelaide", "Australia/Brisbane", "Australia/Perth", "Australia/Sydney",
	"Europe/Amsterdam", "Europe/Athens", "Europe/Berlin", "Europe/Istanbul", "Europe/Lisbon",
	"Europe/London", "Europe/Madrid", "Europe/Moscow", "Europe/Paris", "Europe/Warsaw",
	"Pacific/Auckland", "Pacific/Honolulu", "Pacific/Kiritimati",
}

type ZoneInfo struct {
	Name   string `json:"value"`
	Label  string `json:"label"`
	Offset string `json:"offset"`
	Region string `json:"region"`
}

// CommonZones describes the picker zones with their offset at now, sorted by offset then name.
func CommonZones(now time.Time) []ZoneInfo {
	out := make([]ZoneInfo, 0, len(commonZones))
	offsets := make(map[string]int, len(commonZones))
	for _, name := range commonZones {
		loc, err := LoadZone(name)
		if err != nil {
			continue
		}
		local := now.In(loc)
		_, secs := local.Zone()
		offsets[name] = secs
		offset := local.Format("-07:00")
		region, _, _ := strings.Cut(name, "/")
		out = append(out, ZoneInfo{
			Name:   name,
			Label:  strings.ReplaceAll(name, "_", " ") + " (UTC" + offset + ")",
			Offset: offset,
			Region: region,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if offsets[out[i].Name] != offsets[out[j].Name] {
			return offsets[out[i].Name] < offsets[out[j].Name]
		}
		return out[i].Name < out[j].Name
	})
	return out
}
