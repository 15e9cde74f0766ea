package llm

// ModelInfo 是模型目录中的一项。
type ModelInfo struct {
	ID       string `json:"id"`
	Label    string `json:"label,omitempty"`
	Provider Name   `json:"provider"`
}

// ProviderModels 是单个供应商下的模型列表。
type ProviderModels struct {
	Provider Name        `json:"provider"`
	Models   []ModelInfo `json:"models"`
}

// catalog 仅用于前端模型选择，与注册表中的适配器无关。
var catalog = []ProviderModels{
	{
		Provider: OpenAI,
		Models: []ModelInfo{
			{ID: "gpt-4o", Label: "GPT-4o", Provider: OpenAI},
			{ID: "gpt-4o-mini", Label: "GPT-4o Mini", Provider: OpenAI},
			{ID: "gpt-4.1", Label: "GPT-4.1", Provider: OpenAI},
			{ID: "gpt-4.1-mini", Label: "GPT-4.1 Mini", Provider: OpenAI},
			{ID: "gpt-3.5-turbo", Label: "GPT-3.5 Turbo", Provider: OpenAI},
		},
	},
	{
		Provider: Google,
		Models: []ModelInfo{
			{ID: "gemini-1.5-pro", Label: "Gemini 1.5 Pro", Provider: Google},
			{ID: "gemini-1.5-flash", Label: "Gemini 1.5 Flash", Provider: Google},
			{ID: "gemini-1.5-flash-lite", Label: "Gemini 1.5 Flash Lite", Provider: Google},
			{ID: "gemini-2.5-flash", Label: "Gemini 2.5 Flash", Provider: Google},
		},
	},
	{
		Provider: Anthropic,
		Models: []ModelInfo{
			{ID: "claude-3-5-sonnet-20240620", Label: "Claude 3.5 Sonnet (2024-06-20)", Provider: Anthropic},
			{ID: "claude-3-opus-20240229", Label: "Claude 3 Opus (2024-02-29)", Provider: Anthropic},
			{ID: "claude-3-haiku-20240307", Label: "Claude 3 Haiku (2024-03-07)", Provider: Anthropic},
		},
	},
}

// Catalog 返回完整目录的副本，调用方可以随意修改。
func Catalog() []ProviderModels {
	out := make([]ProviderModels, len(catalog))
	for i, pm := range catalog {
		out[i] = ProviderModels{Provider: pm.Provider, Models: append([]ModelInfo(nil), pm.Models...)}
	}
	return out
}

// AllModels 返回按供应商顺序展开的模型列表。
func AllModels() []ModelInfo {
	var out []ModelInfo
	for _, pm := range catalog {
		out = append(out, pm.Models...)
	}
	return out
}

// ModelsFor 返回某个供应商的模型；ECHO 等没有目录的供应商返回空列表。
func ModelsFor(name Name) []ModelInfo {
	for _, pm := range catalog {
		if pm.Provider == name {
			return append([]ModelInfo(nil), pm.Models...)
		}
	}
	return []ModelInfo{}
}
