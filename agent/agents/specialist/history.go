package specialist

import (
	"github.com/cloudwego/eino/schema"

	contractx "github.com/MazarSayed/stock-platform/agent/contract"
)

// toSchemaMessages maps conversation history onto chat messages. Specialist
// answers keep the specialist name so the router can see who replied.
func toSchemaMessages(history []contractx.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(history))
	for _, m := range history {
		if m.Role == contractx.RoleUser {
			out = append(out, schema.UserMessage(m.Content))
			continue
		}
		msg := schema.AssistantMessage(m.Content, nil)
		if m.Agent != "" {
			msg.Name = string(m.Agent)
		}
		out = append(out, msg)
	}
	return out
}
