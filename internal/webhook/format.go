package webhook

import (
	"fmt"
	"strings"

	"release-relay/internal/models"
)

func formatAnnouncement(rel *models.Release) string {
	title := rel.Title
	if title == "" {
		title = "N/A"
	}
	return fmt.Sprintf(
		"🚀 *New release in* `%s`\n\n"+
			"*Version:* `%s`\n"+
			"*Title:* %s\n"+
			"*By:* `%s`\n\n"+
			"[View release](%s)",
		rel.Repo, rel.Tag, title, rel.Author, rel.URL,
	)
}

func formatAssetCaption(rel *models.Release, filename string) string {
	return fmt.Sprintf(
		"📦 *Release asset*\n"+
			"*Repo:* `%s`\n"+
			"*Version:* `%s`\n\n"+
			"📄 `%s`",
		rel.Repo, rel.Tag, filename,
	)
}

// sanitizeFilename collapses dots in the filename stem to hyphens, keeping
// only the final extension. Telegram renders captions and filenames with
// multiple dots unreliably.
func sanitizeFilename(name string) string {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return name
	}
	return strings.ReplaceAll(name[:i], ".", "-") + name[i:]
}
