package updater

import (
	"fmt"
	"time"
)

// buildPrompt renders the fixed research prompt for one update run. The
// current document version and date are the only variable parts; the rest
// pins the exact response shape so extraction stays trivial.
func buildPrompt(version string, now time.Time) string {
	return fmt.Sprintf(`You are a pricing researcher for a GPU cloud ROI calculator.
Today is %s. The configuration document is at version %s.

Research current market data for:
- GPU hourly pricing on major clouds (H100, H200, B200, B300)
- Newly released open AI models (Llama, Mistral, DeepSeek families)
- Block and object storage pricing
- NVLink interconnect configurations

Respond with a single JSON object and nothing else:
{
  "version_increment": "minor" | "patch",
  "gpuTypes_updates": { "<existing GPU name>": { "<property>": <value> } },
  "modelArchitectures_updates": { "<existing model name>": { "<property>": <value> } },
  "notes": "<one-paragraph summary of what changed>"
}

Use "minor" when prices or models changed materially, "patch" for small
corrections. If nothing changed, omit "version_increment" entirely.`,
		now.UTC().Format("2006-01-02"), version)
}
