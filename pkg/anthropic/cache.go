package anthropic

// BuildCachedSystemBlocks wraps a system prompt in a single cache-controlled
// block so the fixed instruction header is cached across batch calls.
func BuildCachedSystemBlocks(prompt string) []SystemBlock {
	return []SystemBlock{
		{Text: prompt, CacheControl: &CacheControl{}},
	}
}
