package diagnose

import (
	"encoding/json"

	"github.com/flowlens/flowlens-cli/api/schemas"
)

const sendEmailToolName = "send_email"

// sendEmailTool is the function definition registered for the chat loop. The
// parameter schema travels to the provider verbatim.
var sendEmailTool = schemas.ToolDefinition{
	Name:        sendEmailToolName,
	Description: "Sends an email with analysis results",
	Parameters: json.RawMessage(`{
  "type": "object",
  "properties": {
    "recipient": {
      "type": "string",
      "description": "Recipient email address"
    },
    "subject": {
      "type": "string",
      "description": "Email subject"
    },
    "body": {
      "type": "string",
      "description": "Email body containing analysis results"
    }
  },
  "required": ["recipient", "subject", "body"]
}`),
}

// sendEmailArgs is the decoded argument object of a send_email tool call.
type sendEmailArgs struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}
