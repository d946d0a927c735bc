package media

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/blockedby/tgdown/internal/telegram"
)

// fallbackFolder is used when a title has no letters, digits or spaces.
const fallbackFolder = "untitled"

// FolderName derives the destination folder from a channel title by
// keeping only letters, digits and spaces, then trimming.
func FolderName(title string) string {
	var b strings.Builder
	for _, r := range title {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' {
			b.WriteRune(r)
		}
	}
	name := strings.TrimSpace(b.String())
	if name == "" {
		return fallbackFolder
	}
	return name
}

// FileName resolves the target filename for a message: the document's
// original filename when present, otherwise "<message id><ext>".
func FileName(msg telegram.Message) string {
	if msg.Media != nil {
		if name := cleanFileName(msg.Media.FileName); name != "" {
			return name
		}
	}
	return strconv.Itoa(msg.ID) + ExtensionFor(msg.Media)
}

// cleanFileName strips any directory components from a remote filename.
func cleanFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimSpace(filepath.Base(name))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}

// ExtensionFor returns ".jpg" for photos and "." plus the MIME subtype for
// documents, so "video/quicktime" becomes ".quicktime".
func ExtensionFor(m *telegram.Media) string {
	if m == nil {
		return ""
	}
	if m.Kind == telegram.MediaPhoto {
		return ".jpg"
	}

	mime := strings.ToLower(strings.TrimSpace(m.MIMEType))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if mime == "" {
		return ""
	}
	_, sub, ok := strings.Cut(mime, "/")
	if !ok || sub == "" {
		return ""
	}
	return "." + sub
}

// CollisionName returns the n-th alternative for name when a different file
// already occupies it: "base (id).ext", then "base (id-n).ext".
func CollisionName(name string, msgID, n int) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if n <= 1 {
		return fmt.Sprintf("%s (%d)%s", base, msgID, ext)
	}
	return fmt.Sprintf("%s (%d-%d)%s", base, msgID, n, ext)
}
