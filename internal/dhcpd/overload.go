package dhcpd

import "bytes"

// mergeOverload implements RFC 2132 §9.3 Option Overload: when option 52 is
// present, the sname and/or file header fields are reinterpreted as
// additional option space and scanned exactly like the main options area,
// then virtually concatenated with it before same-code groups are decoded.
//
// Scanning order is options area, then file, then sname, matching the order
// most implementations write them in. A code that appears in more than one
// region is not deduplicated: its fragments are concatenated in that
// scanning order, the same rule scanOptions applies within one region, and
// the joined bytes go to the typed decoder (so a fixed-width option repeated
// across regions fails its length check).
func mergeOverload(
	groups []rawOptionGroup,
	overloadMask uint8,
	snameRaw, fileRaw []byte,
) (opts []Option, sname, file string, err error) {
	if overloadMask == 0 {
		sname = cStringTrim(snameRaw)
		file = cStringTrim(fileRaw)

		opts, err = decodeGroups(groups)

		return opts, sname, file, err
	}

	merged := append([]rawOptionGroup(nil), groups...)
	index := map[OptionCode]int{}
	for i, g := range merged {
		index[g.code] = i
	}

	appendRegion := func(region []byte) error {
		regionGroups, _, err := scanOptions(region)
		if err != nil {
			return err
		}

		for _, g := range regionGroups {
			if idx, ok := index[g.code]; ok {
				merged[idx].data = append(merged[idx].data, g.data...)
			} else {
				index[g.code] = len(merged)
				merged = append(merged, g)
			}
		}

		return nil
	}

	if overloadMask&OverloadFile != 0 {
		if err = appendRegion(fileRaw); err != nil {
			return nil, "", "", err
		}
	} else {
		file = cStringTrim(fileRaw)
	}

	if overloadMask&OverloadSname != 0 {
		if err = appendRegion(snameRaw); err != nil {
			return nil, "", "", err
		}
	} else {
		sname = cStringTrim(snameRaw)
	}

	opts, err = decodeGroups(merged)

	return opts, sname, file, err
}

// decodeGroups runs each group's concatenated bytes through the option
// registry, preserving first-seen order.
func decodeGroups(groups []rawOptionGroup) ([]Option, error) {
	opts := make([]Option, 0, len(groups))
	for _, g := range groups {
		opt, err := decodeOption(g.code, g.data)
		if err != nil {
			return nil, err
		}

		opts = append(opts, opt)
	}

	return opts, nil
}

// cStringTrim trims a fixed-width, NUL-padded header field to its string
// content.
func cStringTrim(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}

	return string(b)
}
