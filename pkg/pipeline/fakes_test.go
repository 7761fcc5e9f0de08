package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/zoeyai/featmatch/pkg/vision/feature"
)

type fakeImage struct {
	name   string
	w, h   int
	mu     *sync.Mutex
	closed *int
}

func (f *fakeImage) Width() int  { return f.w }
func (f *fakeImage) Height() int { return f.h }
func (f *fakeImage) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	*f.closed++
	return nil
}

// fakeEnv 内存中的流水线依赖，记录调用顺序
type fakeEnv struct {
	mu     sync.Mutex
	calls  []string
	opened int
	closed int

	images       map[string][2]int // 路径 -> 宽高
	loadErr      map[string]error
	sets         map[string]*feature.Set
	format       feature.Format
	unavailable  bool
	extractErr   error
	renderErr    error
	persistErr   error
	rendered     []RenderInput
	persisted    map[string]int
	resizeCalled bool
}

func newFakeEnv() *fakeEnv {
	return &fakeEnv{
		images:    make(map[string][2]int),
		loadErr:   make(map[string]error),
		sets:      make(map[string]*feature.Set),
		format:    feature.FormatBinary,
		persisted: make(map[string]int),
	}
}

func (e *fakeEnv) record(call string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, call)
}

func (e *fakeEnv) newImage(name string, w, h int) *fakeImage {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opened++
	return &fakeImage{name: name, w: w, h: h, mu: &e.mu, closed: &e.closed}
}

func (e *fakeEnv) deps() Deps {
	return Deps{
		Loader:     fakeLoader{e},
		Resizer:    fakeResizer{e},
		Extractors: e.factory,
		Renderer:   fakeRenderer{e},
		Persister:  fakePersister{e},
	}
}

func (e *fakeEnv) factory(kind ExtractorKind, _ ExtractorParams) (Extractor, error) {
	if e.unavailable {
		return nil, &ExtractorUnavailableError{Kind: kind, Hint: "需要 contrib 构建"}
	}
	e.record("new:" + string(kind))
	return &fakeExtractor{env: e, kind: kind}, nil
}

type fakeLoader struct{ env *fakeEnv }

func (l fakeLoader) Load(path string) (Image, error) {
	l.env.record("load:" + path)
	if err, ok := l.env.loadErr[path]; ok {
		return nil, err
	}
	size, ok := l.env.images[path]
	if !ok {
		return nil, errors.New("file not found")
	}
	return l.env.newImage(path, size[0], size[1]), nil
}

type fakeResizer struct{ env *fakeEnv }

func (r fakeResizer) ResizeToCommon(a, b Image) (Image, Image, error) {
	r.env.record("resize")
	r.env.mu.Lock()
	r.env.resizeCalled = true
	r.env.mu.Unlock()
	w := min(a.Width(), b.Width())
	h := min(a.Height(), b.Height())
	return r.env.newImage(a.(*fakeImage).name, w, h), r.env.newImage(b.(*fakeImage).name, w, h), nil
}

type fakeExtractor struct {
	env  *fakeEnv
	kind ExtractorKind
}

func (x *fakeExtractor) Name() string           { return string(x.kind) }
func (x *fakeExtractor) Format() feature.Format { return x.env.format }
func (x *fakeExtractor) Close() error {
	x.env.record("close:" + string(x.kind))
	return nil
}

func (x *fakeExtractor) Extract(img Image) (*feature.Set, error) {
	name := img.(*fakeImage).name
	x.env.record("extract:" + name)
	if x.env.extractErr != nil {
		return nil, x.env.extractErr
	}
	return x.env.sets[name], nil
}

type fakeRenderer struct{ env *fakeEnv }

func (r fakeRenderer) Compose(in RenderInput) (Image, error) {
	r.env.record("render")
	if r.env.renderErr != nil {
		return nil, r.env.renderErr
	}
	r.env.mu.Lock()
	r.env.rendered = append(r.env.rendered, in)
	r.env.mu.Unlock()
	return r.env.newImage("composite", in.Source.Width()+in.Target.Width(), max(in.Source.Height(), in.Target.Height())), nil
}

type fakePersister struct{ env *fakeEnv }

func (p fakePersister) Persist(path string, img Image) (int64, error) {
	p.env.record("persist:" + path)
	if p.env.persistErr != nil {
		return 0, p.env.persistErr
	}
	p.env.mu.Lock()
	p.env.persisted[path]++
	p.env.mu.Unlock()
	return int64(img.Width() * img.Height()), nil
}

type fakeRecorder struct {
	mu        sync.Mutex
	summaries []*Summary
	errs      []error
}

func (r *fakeRecorder) Record(_ context.Context, s *Summary, runErr error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries = append(r.summaries, s)
	r.errs = append(r.errs, runErr)
	return nil
}

// binarySet 生成 n 个两两不同的 4 字节描述子
func binarySet(n int) *feature.Set {
	kps := make([]feature.Keypoint, n)
	descs := make([]feature.Descriptor, n)
	for i := range descs {
		b := byte(i)
		descs[i] = feature.BinaryDescriptor([]byte{b, b * 3, ^b, 0x55})
		kps[i] = feature.Keypoint{X: float64(i), Y: float64(i), Size: 7}
	}
	set, err := feature.NewSet(feature.FormatBinary, kps, descs)
	if err != nil {
		panic(err)
	}
	return set
}

func floatSet(n int) *feature.Set {
	kps := make([]feature.Keypoint, n)
	descs := make([]feature.Descriptor, n)
	for i := range descs {
		vec := make([]float32, 8)
		for d := range vec {
			vec[d] = float32(i*10 + d*d)
		}
		descs[i] = feature.FloatDescriptor(vec)
	}
	set, err := feature.NewSet(feature.FormatFloat, kps, descs)
	if err != nil {
		panic(err)
	}
	return set
}
