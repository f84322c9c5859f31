package pdfform

import (
	"bytes"
	"fmt"
	"math"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

const (
	annotHidden  = 1 << 1
	maxPageDepth = 64
)

// flatten stamps every visible widget appearance into its page's content,
// removes the widget annotations and drops the AcroForm from the catalog.
func (f *form) flatten() error {
	rootDict, err := f.ctx.Catalog()
	if err != nil {
		return fmt.Errorf("failed to get catalog: %w", err)
	}

	pages, err := f.pages(rootDict)
	if err != nil {
		return err
	}

	counter := 0
	for i, page := range pages {
		if err := f.flattenPage(page, &counter); err != nil {
			return fmt.Errorf("page %d: %w", i+1, err)
		}
	}

	delete(rootDict, "AcroForm")
	return nil
}

// pages returns the leaf page dictionaries in document order.
func (f *form) pages(rootDict types.Dict) ([]types.Dict, error) {
	pagesObj, found := rootDict.Find("Pages")
	if !found {
		return nil, fmt.Errorf("catalog has no page tree")
	}

	var out []types.Dict
	var walk func(obj types.Object, depth int)
	walk = func(obj types.Object, depth int) {
		if depth > maxPageDepth {
			return
		}
		node, err := f.ctx.DereferenceDict(obj)
		if err != nil || node == nil {
			return
		}
		kidsObj, hasKids := node.Find("Kids")
		if typ, _ := f.nameEntry(node, "Type"); typ == "Page" || !hasKids {
			out = append(out, node)
			return
		}
		kids, err := f.ctx.DereferenceArray(kidsObj)
		if err != nil {
			return
		}
		for _, kid := range kids {
			walk(kid, depth+1)
		}
	}
	walk(pagesObj, 0)
	return out, nil
}

func (f *form) flattenPage(page types.Dict, counter *int) error {
	annotsObj, found := page.Find("Annots")
	if !found {
		return nil
	}
	annots, err := f.ctx.DereferenceArray(annotsObj)
	if err != nil {
		return fmt.Errorf("failed to dereference Annots: %w", err)
	}

	var kept types.Array
	var stamps bytes.Buffer
	xobjects := make(map[string]types.IndirectRef)

	for _, annotObj := range annots {
		annot, err := f.ctx.DereferenceDict(annotObj)
		if err != nil || annot == nil {
			kept = append(kept, annotObj)
			continue
		}
		if subtype, _ := f.nameEntry(annot, "Subtype"); subtype != "Widget" {
			kept = append(kept, annotObj)
			continue
		}
		if flags, _ := f.intEntry(annot, "F"); flags&annotHidden != 0 {
			continue
		}

		apRef, ok := f.normalAppearance(annot)
		if !ok {
			continue
		}
		m, ok := f.placement(annot, apRef)
		if !ok {
			continue
		}

		*counter++
		name := fmt.Sprintf("FlatFld%d", *counter)
		xobjects[name] = apRef
		fmt.Fprintf(&stamps, "q %s %s %s %s %s %s cm /%s Do Q\n",
			num(m[0]), num(m[1]), num(m[2]), num(m[3]), num(m[4]), num(m[5]), name)
	}

	if len(kept) == 0 {
		delete(page, "Annots")
	} else {
		page["Annots"] = kept
	}
	if stamps.Len() == 0 {
		return nil
	}

	xobjDict, err := f.pageXObjects(page)
	if err != nil {
		return err
	}
	for name, ref := range xobjects {
		xobjDict[name] = ref
	}

	open, err := f.ctx.IndRefForNewObject(newStream(types.Dict{}, []byte("q\n")))
	if err != nil {
		return fmt.Errorf("failed to add content stream: %w", err)
	}
	closing := append([]byte("Q\n"), stamps.Bytes()...)
	stamped, err := f.ctx.IndRefForNewObject(newStream(types.Dict{}, closing))
	if err != nil {
		return fmt.Errorf("failed to add content stream: %w", err)
	}

	contents := types.Array{*open}
	if existing, found := page.Find("Contents"); found {
		contents = append(contents, f.contentParts(existing)...)
	}
	contents = append(contents, *stamped)
	page["Contents"] = contents
	return nil
}

// contentParts flattens a Contents entry into its stream references.
func (f *form) contentParts(obj types.Object) types.Array {
	if arr, ok := obj.(types.Array); ok {
		return arr
	}
	if ref, ok := obj.(types.IndirectRef); ok {
		if resolved, err := f.ctx.Dereference(ref); err == nil {
			if arr, ok := resolved.(types.Array); ok {
				return arr
			}
		}
	}
	return types.Array{obj}
}

// pageXObjects returns the page's XObject resource dictionary, giving the
// page its own Resources when they were only inherited.
func (f *form) pageXObjects(page types.Dict) (types.Dict, error) {
	var resources types.Dict
	if resObj, found := page.Find("Resources"); found {
		d, err := f.ctx.DereferenceDict(resObj)
		if err != nil {
			return nil, fmt.Errorf("failed to dereference Resources: %w", err)
		}
		resources = d
	}
	if resources == nil {
		resources = types.Dict{}
		if inherited := f.inheritedResources(page); inherited != nil {
			for k, v := range inherited {
				resources[k] = v
			}
		}
		page["Resources"] = resources
	}

	if xobjObj, found := resources.Find("XObject"); found {
		d, err := f.ctx.DereferenceDict(xobjObj)
		if err != nil {
			return nil, fmt.Errorf("failed to dereference XObject resources: %w", err)
		}
		if d != nil {
			return d, nil
		}
	}
	xobjDict := types.Dict{}
	resources["XObject"] = xobjDict
	return xobjDict, nil
}

func (f *form) inheritedResources(page types.Dict) types.Dict {
	node := page
	for depth := 0; depth < maxPageDepth; depth++ {
		parentObj, found := node.Find("Parent")
		if !found {
			return nil
		}
		parent, err := f.ctx.DereferenceDict(parentObj)
		if err != nil || parent == nil {
			return nil
		}
		if resObj, found := parent.Find("Resources"); found {
			if res, err := f.ctx.DereferenceDict(resObj); err == nil {
				return res
			}
		}
		node = parent
	}
	return nil
}

// normalAppearance picks the stream a widget currently shows: its N stream,
// or the entry of its N dictionary selected by AS.
func (f *form) normalAppearance(annot types.Dict) (types.IndirectRef, bool) {
	var none types.IndirectRef
	apObj, found := annot.Find("AP")
	if !found {
		return none, false
	}
	apDict, err := f.ctx.DereferenceDict(apObj)
	if err != nil || apDict == nil {
		return none, false
	}
	nObj, found := apDict.Find("N")
	if !found {
		return none, false
	}

	var states types.Dict
	switch n := nObj.(type) {
	case types.IndirectRef:
		if f.isStream(n) {
			return n, true
		}
		d, err := f.ctx.DereferenceDict(n)
		if err != nil || d == nil {
			return none, false
		}
		states = d
	case types.Dict:
		states = n
	default:
		return none, false
	}

	state, _ := f.nameEntry(annot, "AS")
	if state == "" && len(states) == 1 {
		for only := range states {
			state = only
		}
	}
	ref, ok := states[state].(types.IndirectRef)
	if !ok || !f.isStream(ref) {
		return none, false
	}
	return ref, true
}

func (f *form) isStream(ref types.IndirectRef) bool {
	obj, err := f.ctx.Dereference(ref)
	if err != nil {
		return false
	}
	switch obj.(type) {
	case types.StreamDict, *types.StreamDict:
		return true
	default:
		return false
	}
}

func (f *form) streamDict(ref types.IndirectRef) (types.Dict, bool) {
	obj, err := f.ctx.Dereference(ref)
	if err != nil {
		return nil, false
	}
	switch sd := obj.(type) {
	case types.StreamDict:
		return sd.Dict, true
	case *types.StreamDict:
		return sd.Dict, true
	default:
		return nil, false
	}
}

// placement computes the matrix mapping the appearance's transformed BBox
// onto the widget's Rect.
func (f *form) placement(annot types.Dict, ref types.IndirectRef) ([6]float64, bool) {
	var m [6]float64
	rect, err := f.rect(annot)
	if err != nil {
		return m, false
	}
	d, ok := f.streamDict(ref)
	if !ok {
		return m, false
	}
	if _, found := d.Find("Subtype"); !found {
		d["Type"] = types.Name("XObject")
		d["Subtype"] = types.Name("Form")
	}

	bbox := []float64{0, 0, rect[2] - rect[0], rect[3] - rect[1]}
	if obj, found := d.Find("BBox"); found {
		if nums := f.numbers(obj); len(nums) == 4 {
			bbox = nums
		}
	}
	matrix := []float64{1, 0, 0, 1, 0, 0}
	if obj, found := d.Find("Matrix"); found {
		if nums := f.numbers(obj); len(nums) == 6 {
			matrix = nums
		}
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, corner := range [][2]float64{{bbox[0], bbox[1]}, {bbox[2], bbox[1]}, {bbox[0], bbox[3]}, {bbox[2], bbox[3]}} {
		x := matrix[0]*corner[0] + matrix[2]*corner[1] + matrix[4]
		y := matrix[1]*corner[0] + matrix[3]*corner[1] + matrix[5]
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	bw, bh := maxX-minX, maxY-minY
	if bw <= 0 || bh <= 0 {
		return m, false
	}

	sx := (rect[2] - rect[0]) / bw
	sy := (rect[3] - rect[1]) / bh
	return [6]float64{sx, 0, 0, sy, rect[0] - minX*sx, rect[1] - minY*sy}, true
}

func (f *form) numbers(obj types.Object) []float64 {
	arr, err := f.ctx.DereferenceArray(obj)
	if err != nil {
		return nil
	}
	out := make([]float64, 0, len(arr))
	for _, o := range arr {
		v, err := f.ctx.DereferenceNumber(o)
		if err != nil {
			return nil
		}
		out = append(out, v)
	}
	return out
}
