package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowAPIKeyGuide explains where to get an API key and how fightgen finds it
func ShowAPIKeyGuide(w io.Writer) {
	rule := strings.Repeat("=", 72)
	lines := []string{
		rule,
		"🔑 GENERATION API KEY",
		rule,
		"",
		"fightgen calls an OpenAI compatible chat completions endpoint.",
		"",
		"STEP 1: Create a key",
		"   - OpenAI: https://platform.openai.com/api-keys",
		"   - Other providers: use their key and pass --base-url",
		"",
		"STEP 2: Give it to fightgen, any one of",
		"   • fightgen auth login            (stored in the keyring or an encrypted file)",
		"   • export FIGHTGEN_API_KEY=sk-... (or OPENAI_API_KEY)",
		"   • generator.api_key in fightgen.yaml",
		"",
		"Lookup order: --api-key, config file and environment, then stored accounts.",
		"",
		"⚠️  Keys are billed per request. A 10,000 fight run makes about 200 calls.",
		rule,
	}
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}
