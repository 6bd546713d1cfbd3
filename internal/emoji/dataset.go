package emoji

import (
	"fmt"

	"github.com/valyala/fastjson"
)

// Flatten parses a raw emoji.json document and returns one record per base entry
// followed immediately by one record per skin variation of that entry.
//
// Variations are visited in document order, and each one is built by copying the
// base record and overwriting only the fields the variation object carries.
func Flatten(data []byte) ([]Record, error) {
	var p fastjson.Parser
	root, err := p.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse dataset: %w", err)
	}
	bases, err := root.Array()
	if err != nil {
		return nil, fmt.Errorf("dataset root must be an array: %w", err)
	}

	records := make([]Record, 0, len(bases))
	for _, v := range bases {
		obj, err := v.Object()
		if err != nil {
			continue
		}
		var base Record
		applyFields(&base, obj)
		records = append(records, base)

		variations := obj.Get("skin_variations")
		if variations == nil || variations.Type() != fastjson.TypeObject {
			continue
		}
		varObj, _ := variations.Object()
		varObj.Visit(func(key []byte, vv *fastjson.Value) {
			override, err := vv.Object()
			if err != nil {
				return
			}
			rec := base
			rec.SkinTone = string(key)
			applyFields(&rec, override)
			records = append(records, rec)
		})
	}
	return records, nil
}

// applyFields copies every known field present in obj onto rec. Absent fields
// leave rec untouched, which is what makes variation merging work.
func applyFields(rec *Record, obj *fastjson.Object) {
	obj.Visit(func(key []byte, v *fastjson.Value) {
		switch string(key) {
		case "unified":
			rec.Unified = stringValue(v)
		case "non_qualified":
			rec.NonQualified = stringValue(v)
		case "name":
			rec.Name = stringValue(v)
		case "image":
			rec.Image = stringValue(v)
		case "short_name":
			rec.ShortName = stringValue(v)
		case "short_names":
			items, err := v.Array()
			if err != nil {
				return
			}
			names := make([]string, 0, len(items))
			for _, item := range items {
				names = append(names, stringValue(item))
			}
			rec.ShortNames = names
		case "category":
			rec.Category = stringValue(v)
		case "subcategory":
			rec.Subcategory = stringValue(v)
		case "sort_order":
			if n, err := v.Int(); err == nil {
				rec.SortOrder = n
			}
		}
	})
}

// stringValue returns "" for null or non-string values.
func stringValue(v *fastjson.Value) string {
	if v == nil || v.Type() != fastjson.TypeString {
		return ""
	}
	b, _ := v.StringBytes()
	return string(b)
}
