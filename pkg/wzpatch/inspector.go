package wzpatch

import "io"

// PatcherInfo summarizes what a patch's record stream would do without
// touching disk: which files would be added, removed, or modified, and how
// many bytes each modified file's reconstruction touches.
type PatcherInfo struct {
	Added    []AddedFile
	Removed  []string
	Modified []ModifiedFile
}

// AddedFile is one file a patch would create.
type AddedFile struct {
	Path string
	Size int
}

// ModifiedFile is one file a patch would rewrite, with the total number of
// bytes its block program writes to the reconstructed file.
type ModifiedFile struct {
	Path  string
	Bytes int
}

// Inspector implements Handler by accumulating a PatcherInfo instead of
// touching any file on disk.
type Inspector struct {
	info    PatcherInfo
	current int // index into info.Modified of the in-progress modify record
}

// NewInspector returns an Inspector ready to be passed to Patch.Process.
func NewInspector() *Inspector {
	return &Inspector{current: -1}
}

// Info returns the accumulated summary. Valid only after Process returns.
func (ins *Inspector) Info() PatcherInfo {
	return ins.info
}

func (ins *Inspector) OnAdd(path string, data io.Reader, length, checksum uint32) error {
	ins.info.Added = append(ins.info.Added, AddedFile{Path: path, Size: int(length)})
	return nil
}

func (ins *Inspector) OnRemove(path string) error {
	ins.info.Removed = append(ins.info.Removed, path)
	return nil
}

func (ins *Inspector) OnModify(path string, oldChecksum, newChecksum uint32) error {
	ins.info.Modified = append(ins.info.Modified, ModifiedFile{Path: path})
	ins.current = len(ins.info.Modified) - 1
	return nil
}

func (ins *Inspector) OnModRepeat(b byte, length uint32) error {
	ins.info.Modified[ins.current].Bytes += int(length)
	return nil
}

func (ins *Inspector) OnModNewBlock(data io.Reader, length uint32) error {
	ins.info.Modified[ins.current].Bytes += int(length)
	return nil
}

func (ins *Inspector) OnModOldBlock(offset, length uint32) error {
	ins.info.Modified[ins.current].Bytes += int(length)
	return nil
}

func (ins *Inspector) OnModEnd(newChecksum uint32) error {
	ins.current = -1
	return nil
}
