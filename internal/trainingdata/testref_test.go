package trainingdata

import "github.com/runtimelab/jitcore/internal/ports"

type fakeClass struct {
	name        string
	loader      string
	initialized bool
}

func (f *fakeClass) Name() string        { return f.name }
func (f *fakeClass) LoaderName() string  { return f.loader }
func (f *fakeClass) IsInitialized() bool { return f.initialized }

type fakeMethod struct {
	name      string
	signature string
	holder    ports.ClassRef
	native    bool
	codeSize  int
	aot       bool
	tier      int
}

func (f *fakeMethod) Name() string                { return f.name }
func (f *fakeMethod) Signature() string           { return f.signature }
func (f *fakeMethod) HolderClass() ports.ClassRef { return f.holder }
func (f *fakeMethod) HasNativeCode() bool         { return f.native }
func (f *fakeMethod) CodeSize() int               { return f.codeSize }
func (f *fakeMethod) IsAOTEntry() bool            { return f.aot }
func (f *fakeMethod) TopTierLevel() int           { return f.tier }
