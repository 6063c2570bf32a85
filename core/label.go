package core

// Label 记录一条可解释信息：哪个阶段、基于什么做出了决定。
// Source 一般是 Node 名称（"rank.ephemeral"、"rerank.diverse" 等）。
type Label struct {
	Value  string `json:"value"`
	Source string `json:"source"`
}

// MergeLabel 合并同名 Label：Value 以 '|' 累积，Source 去重后以 ',' 累积。
func MergeLabel(existing, incoming Label) Label {
	if existing.Value == "" {
		return incoming
	}
	if incoming.Value == "" {
		return existing
	}

	merged := existing
	merged.Value = existing.Value + "|" + incoming.Value
	switch {
	case existing.Source == "" || existing.Source == incoming.Source:
		merged.Source = incoming.Source
	case incoming.Source == "":
	default:
		merged.Source = existing.Source + "," + incoming.Source
	}
	return merged
}
