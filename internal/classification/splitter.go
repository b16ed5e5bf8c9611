package classification

import (
	"strconv"
	"strings"

	"github.com/nao1215/panoskim/internal/model"
)

// delimiter separates the fields of a raw classification line.
const delimiter = ','

// Closing markers of the two variable-length blobs.
const (
	metadataMarker   = `}"`
	annotationMarker = `]"`
)

// prefixFields names the fixed leading fields in column order.
var prefixFields = [...]string{
	"user_name",
	"user_ip",
	"workflow_id",
	"workflow_name",
	"workflow_version",
	"created_at",
	"gold_standard",
	"expert",
}

// Fields holds the tokens of one raw classification line.
// Blob fields keep their CSV quoting verbatim.
type Fields struct {
	UserName     string
	UserIP       string
	WorkflowID   int
	WorkflowName string
	VersionMajor int
	VersionMinor int
	Timestamp    string
	Reserved     [2]string
	Metadata     string
	Annotations  string
	Subject      string
}

// WorkflowSpec returns the workflow spec carried by the fields.
func (f Fields) WorkflowSpec() model.WorkflowSpec {
	return model.WorkflowSpec{ID: f.WorkflowID, Major: f.VersionMajor, Minor: f.VersionMinor}
}

// Join re-assembles the fields into a raw line that splits back to the same fields.
func (f Fields) Join() string {
	parts := []string{
		f.UserName,
		f.UserIP,
		strconv.Itoa(f.WorkflowID),
		f.WorkflowName,
		strconv.Itoa(f.VersionMajor) + "." + strconv.Itoa(f.VersionMinor),
		f.Timestamp,
		f.Reserved[0],
		f.Reserved[1],
		f.Metadata,
		f.Annotations,
		f.Subject,
	}
	return strings.Join(parts, string(delimiter))
}

// Split tokenizes one raw classification line.
// Fixed fields are cut at the first delimiter; blobs are scanned as quoted
// spans so that delimiters inside them are preserved.
func Split(line string) (Fields, error) {
	rest := strings.TrimRight(line, "\r\n")

	var prefix [len(prefixFields)]string
	for i, name := range prefixFields {
		idx := strings.IndexByte(rest, delimiter)
		if idx < 0 {
			return Fields{}, model.Malformed(name, "line ends before field %d", i+1)
		}
		prefix[i], rest = rest[:idx], rest[idx+1:]
	}

	f := Fields{
		UserName:     prefix[0],
		UserIP:       prefix[1],
		WorkflowName: prefix[3],
		Timestamp:    prefix[5],
		Reserved:     [2]string{prefix[6], prefix[7]},
	}

	id, err := strconv.Atoi(strings.TrimSpace(prefix[2]))
	if err != nil {
		return Fields{}, model.Malformed("workflow_id", "%q is not an integer", prefix[2])
	}
	f.WorkflowID = id

	f.VersionMajor, f.VersionMinor, err = model.ParseVersion(strings.TrimSpace(prefix[4]))
	if err != nil {
		return Fields{}, err
	}

	if f.Metadata, rest, err = scanBlob(rest, "metadata", metadataMarker); err != nil {
		return Fields{}, err
	}
	if f.Annotations, rest, err = scanBlob(rest, "annotations", annotationMarker); err != nil {
		return Fields{}, err
	}

	f.Subject = strings.TrimSpace(rest)
	if f.Subject == "" {
		return Fields{}, model.Malformed("subject_data", "missing subject blob")
	}

	return f, nil
}

// scanBlob reads one quoted blob from the start of s, checks its closing
// marker and consumes the delimiter that follows it.
func scanBlob(s, field, marker string) (string, string, error) {
	span, rest, err := scanQuoted(s)
	if err != nil {
		return "", "", model.Malformed(field, "%v", err)
	}
	if !strings.HasSuffix(span, marker) {
		return "", "", model.Malformed(field, "blob does not end with %s", marker)
	}
	if rest == "" || rest[0] != delimiter {
		return "", "", model.Malformed(field, "no delimiter after blob")
	}
	return span, rest[1:], nil
}

// scanQuoted returns the quoted span at the start of s, including both
// outer quotes, and the text after it. Doubled quotes are part of the span.
func scanQuoted(s string) (string, string, error) {
	if s == "" || s[0] != '"' {
		return "", "", errMissingOpenQuote
	}
	for i := 1; i < len(s); i++ {
		if s[i] != '"' {
			continue
		}
		if i+1 < len(s) && s[i+1] == '"' {
			i++
			continue
		}
		return s[:i+1], s[i+1:], nil
	}
	return "", "", errUnterminatedBlob
}
