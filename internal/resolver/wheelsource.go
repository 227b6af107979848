package resolver

import (
	"fmt"
	"strings"
)

// WheelSourceKind enumerates the closed set of wheel source variants.
type WheelSourceKind int

const (
	// WheelOfficialCPU resolves the isolated package from the official index.
	WheelOfficialCPU WheelSourceKind = iota
	// WheelOfficialAccelerated resolves from the accelerated extra index
	// published per hardware tag.
	WheelOfficialAccelerated
	// WheelExplicitURL installs a single wheel from an explicit URL.
	WheelExplicitURL
	// WheelLocalPath installs a single wheel from a local file.
	WheelLocalPath
)

// WheelSource is the parsed wheel source selection. Exactly one variant is
// active per run; there is no cascade between variants on failure, so a
// wrong selection surfaces instead of silently picking an unintended build.
type WheelSource struct {
	// Kind selects the active variant.
	Kind WheelSourceKind
	// Tag is the accelerated-index tag suffix (accelerated variant only).
	Tag string
	// URL is the explicit wheel URL (explicit-URL variant only).
	URL string
	// Path is the local wheel path (local-path variant only).
	Path string
}

const (
	officialCPUToken          = "official-cpu"
	officialAcceleratedPrefix = "official-accelerated-"
)

// OfficialCPU constructs the official-index CPU variant.
func OfficialCPU() WheelSource {
	return WheelSource{Kind: WheelOfficialCPU}
}

// OfficialAccelerated constructs the accelerated-index variant for a tag.
func OfficialAccelerated(tag string) WheelSource {
	return WheelSource{Kind: WheelOfficialAccelerated, Tag: tag}
}

// ExplicitURL constructs the explicit-URL variant.
func ExplicitURL(url string) WheelSource {
	return WheelSource{Kind: WheelExplicitURL, URL: url}
}

// LocalPath constructs the local-path variant.
func LocalPath(path string) WheelSource {
	return WheelSource{Kind: WheelLocalPath, Path: path}
}

// String renders the source for logs and diagnostics.
func (s WheelSource) String() string {
	switch s.Kind {
	case WheelOfficialCPU:
		return officialCPUToken
	case WheelOfficialAccelerated:
		return officialAcceleratedPrefix + s.Tag
	case WheelExplicitURL:
		return s.URL
	case WheelLocalPath:
		return s.Path
	default:
		return "unknown"
	}
}

// ParseWheelSource converts the configuration token into exactly one
// variant. allowedTags is the externally maintained accelerated tag set;
// it is configuration data because the index publishes new tags without
// notice.
func ParseWheelSource(token string, allowedTags []string) (WheelSource, error) {
	token = strings.TrimSpace(token)

	switch {
	case token == officialCPUToken:
		return OfficialCPU(), nil

	case strings.HasPrefix(token, officialAcceleratedPrefix):
		tag := strings.TrimPrefix(token, officialAcceleratedPrefix)
		for _, allowed := range allowedTags {
			if tag == allowed {
				return OfficialAccelerated(tag), nil
			}
		}

		return WheelSource{}, fmt.Errorf("unknown accelerated tag %q: allowed tags are %s",
			tag, strings.Join(allowedTags, ", "))

	case strings.HasPrefix(token, "http://"), strings.HasPrefix(token, "https://"):
		return ExplicitURL(token), nil

	case strings.HasSuffix(token, ".whl"):
		return LocalPath(token), nil

	case token == "":
		return WheelSource{}, fmt.Errorf("wheel source is empty: use %q, %q<tag>, a wheel URL, or a local .whl path",
			officialCPUToken, officialAcceleratedPrefix)

	default:
		return WheelSource{}, fmt.Errorf("unrecognized wheel source %q: use %q, %q<tag>, a wheel URL, or a local .whl path",
			token, officialCPUToken, officialAcceleratedPrefix)
	}
}
