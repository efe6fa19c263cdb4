package export

import "github.com/siston/ChatGPT-Chat-History-To-Notion/internal/jsonx"

// HasImage reports whether any message in the tree carries an image pointer.
func HasImage(conv Conversation) bool {
	for _, node := range conv.Mapping {
		msg := node.Message
		if msg == nil || msg.Content == nil || msg.Content.ContentType != ContentMultimodal {
			continue
		}
		for _, raw := range msg.Content.Parts {
			var part contentPart
			if err := jsonx.Unmarshal(raw, &part); err == nil && part.ContentType == partImagePointer {
				return true
			}
		}
	}
	return false
}

// HasCanvas reports whether any message in the tree has canvas metadata.
func HasCanvas(conv Conversation) bool {
	for _, node := range conv.Mapping {
		if node.Message != nil && node.Message.Metadata.Canvas != nil {
			return true
		}
	}
	return false
}

// QuickSubset picks at most limit conversations with images and at most
// limit with canvases, in input order, without duplicates.
func QuickSubset(convs []Conversation, limit int) (selected []Conversation, images, canvases int) {
	seen := make(map[string]bool)
	for _, conv := range convs {
		if images >= limit && canvases >= limit {
			break
		}
		pick := false
		if images < limit && HasImage(conv) {
			images++
			pick = true
		}
		if canvases < limit && HasCanvas(conv) {
			canvases++
			pick = true
		}
		if pick && !seen[conv.ID] {
			seen[conv.ID] = true
			selected = append(selected, conv)
		}
	}
	return selected, images, canvases
}
