package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/clearwatch/clearwatch/models"
)

// Prompts are hardcoded rather than configurable: the output format feeds
// straight into reports, and a drifting template produces drifting reports.

const singleEventTemplate = `You are a senior security analyst. Your task is to provide a concise, actionable analysis of a single security event.
The event data is provided in JSON format.

**Event Data:**
` + "```json\n%s\n```" + `

**Your Analysis (in Markdown format):**

### 1. Impact Assessment
- **Risk**: (High/Medium/Low) - Assess the immediate risk to the organization.
- **Description**: Briefly describe what happened and why it is a security concern.

### 2. Immediate Triage Steps
- Provide 1-3 immediate, actionable steps to contain and investigate the threat.

### 3. Durable Fix Recommendations
- Recommend long-term solutions to prevent this issue from recurring.

### 4. Validation Steps
- Describe how to verify that the fix has been successfully implemented.
`

const summaryTemplate = `You are a senior security analyst preparing a summary report for leadership.
Your task is to analyze a list of security events and generate a professional, executive-level report in Markdown format.
The event data is provided as a list of JSON objects.

**Event Data:**
` + "```json\n%s\n```" + `

**Your Report (in Markdown format):**

## Security Intelligence Report

### 1. Executive Summary
- **Key Findings**: Summarize the most critical findings and risks observed during this period.
- **Overall Risk**: Provide an overall risk assessment (Critical/High/Medium/Low).
- **Primary Recommendation**: State the single most important action to take.

### 2. Findings by Category
- Group the findings by protocol or severity and describe their potential impact.

### 3. Immediate Actions Required
- List the most urgent items that require immediate attention, with specific actions.

### 4. Risk Assessment
- **Business Impact**: Analyze the potential business impact of these findings.
- **Threat Landscape**: Briefly describe how these findings relate to the current threat landscape.

### 5. Compliance Implications
- **Policy Violations**: Identify any internal or external policy violations.
- **Recommendations**: Suggest steps to improve compliance posture.

### 6. Appendix: Detailed Event Listings
- Provide a summarized list of the top 5-10 most critical events, including timestamp, rule, and source/destination IPs.
`

func singleEventPrompt(event models.Event) (string, error) {
	data, err := json.MarshalIndent(event, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode event for prompt: %w", err)
	}
	return fmt.Sprintf(singleEventTemplate, string(data)), nil
}

func summaryPrompt(events []models.Event) (string, error) {
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode events for prompt: %w", err)
	}
	return fmt.Sprintf(summaryTemplate, strings.TrimSpace(string(data))), nil
}
