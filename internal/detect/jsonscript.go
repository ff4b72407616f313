package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/hyperifyio/svgscout/internal/asset"
	"github.com/hyperifyio/svgscout/internal/page"
)

var jsonScriptTypes = map[string]bool{
	"application/json":    true,
	"application/ld+json": true,
}

// JSONScript finds SVG markup and SVG data URIs among the string values of
// JSON data islands. Invalid blocks are skipped.
type JSONScript struct{}

func (JSONScript) Name() string { return "JSON Script SVGs" }

func (JSONScript) Detect(ctx context.Context, env *Env) ([]asset.Asset, error) {
	s := &scope{root: env.Page.Doc, source: asset.SourceJSONScript}
	seen := make(map[string]bool)
	var out []asset.Asset
	for _, script := range page.Elements(s.root, "script") {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if !jsonScriptTypes[strings.ToLower(strings.TrimSpace(attr(script, "type")))] {
			continue
		}
		text := page.TextContent(script)
		if !json.Valid([]byte(text)) {
			continue
		}
		values, err := jsonStrings(text)
		if err != nil {
			continue
		}
		for _, v := range values {
			v = strings.TrimSpace(v)
			if v == "" || seen[v] {
				continue
			}
			switch {
			case asset.IsSVGDataURI(v):
				seen[v] = true
				if content, err := asset.DecodeDataURI(v); err == nil {
					out = s.add(out, content, "")
				}
			case asset.LooksLikeSVG(v):
				seen[v] = true
				out = s.add(out, v, "")
			}
		}
	}
	return out, nil
}

// jsonStrings returns every string value (object keys excluded). Arrays
// keep their order. Object members follow property enumeration order:
// array-index keys ascending, then the other keys in first-seen order, with a
// repeated key keeping its first slot and its last value.
func jsonStrings(text string) ([]string, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	return readStrings(dec)
}

func readStrings(dec *json.Decoder) ([]string, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch v := tok.(type) {
	case string:
		return []string{v}, nil
	case json.Delim:
		switch v {
		case '[':
			var out []string
			for dec.More() {
				vals, err := readStrings(dec)
				if err != nil {
					return nil, err
				}
				out = append(out, vals...)
			}
			_, err := dec.Token()
			return out, err
		case '{':
			return readObject(dec)
		}
		return nil, fmt.Errorf("unexpected delimiter %q", v)
	}
	return nil, nil
}

type jsonMember struct {
	key    string
	values []string
}

func readObject(dec *json.Decoder) ([]string, error) {
	var members []jsonMember
	slot := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", tok)
		}
		vals, err := readStrings(dec)
		if err != nil {
			return nil, err
		}
		if i, dup := slot[key]; dup {
			members[i].values = vals
			continue
		}
		slot[key] = len(members)
		members = append(members, jsonMember{key: key, values: vals})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	sort.SliceStable(members, func(i, j int) bool {
		ai, aok := arrayIndex(members[i].key)
		bi, bok := arrayIndex(members[j].key)
		if aok && bok {
			return ai < bi
		}
		return aok && !bok
	})
	var out []string
	for _, m := range members {
		out = append(out, m.values...)
	}
	return out, nil
}

// arrayIndex reports whether key is the canonical decimal form of an
// integer in [0, 2^32-2].
func arrayIndex(key string) (uint64, bool) {
	if key == "" || (len(key) > 1 && key[0] == '0') {
		return 0, false
	}
	n, err := strconv.ParseUint(key, 10, 64)
	if err != nil || n > math.MaxUint32-1 {
		return 0, false
	}
	return n, true
}
