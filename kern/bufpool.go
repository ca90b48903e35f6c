// Copyright 2026 The rtkern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

import "unsafe"

// Buffer pool: a fixed array of same-size blocks handed out through a
// freelist. Take and give never block and never allocate.

// bpcb is a buffer pool control block.
type bpcb struct {
	free      []uint16 // freelist stack of slot indices
	buf       []byte
	size      uint16
	count     uint16
	index     uint16
	kernelBuf bool
	alloc     bool
}

func (p *bpcb) handle() Handle { return makeHandle(KindBufPool, p.index) }

func (k *Kernel) initBufPools() {
	k.pools = make([]bpcb, k.cfg.BufPoolMax)
	k.freePool = make([]*bpcb, 0, k.cfg.BufPoolMax)
	for i := k.cfg.BufPoolMax - 1; i >= 0; i-- {
		p := &k.pools[i]
		p.index = uint16(i)
		k.freePool = append(k.freePool, p)
	}
}

func (k *Kernel) getBufPool(id Handle) (*bpcb, error) {
	if k.cfg.WithArgCheck {
		if id.Kind() != KindBufPool || int(id.Index()) >= len(k.pools) {
			k.notify(NotifyError, id)
			return nil, ErrArg
		}
		p := &k.pools[id.Index()]
		k.criticalEnter()
		alloc := p.alloc
		k.criticalExit()
		if !alloc {
			k.notify(NotifyError, id)
			return nil, ErrArg
		}
		return p, nil
	}
	return &k.pools[id.Index()], nil
}

// BufPoolIsValid reports whether id currently names an allocated pool.
func (k *Kernel) BufPoolIsValid(id Handle) bool {
	if id.Kind() != KindBufPool || int(id.Index()) >= len(k.pools) {
		return false
	}
	k.criticalEnter()
	ok := k.pools[id.Index()].alloc
	k.criticalExit()
	return ok
}

// BufPoolCreate builds a pool of count blocks of size bytes. A nil buf
// asks the kernel to own the backing array; a supplied buf must hold
// count*size bytes.
func (k *Kernel) BufPoolCreate(count, size int, buf []byte) (Handle, error) {
	if count <= 0 || count > queueMsgMax || size <= 0 || size > queueMsgMax {
		k.notify(NotifyError, 0)
		return 0, ErrArg
	}
	if buf != nil && len(buf) < count*size {
		k.notify(NotifyError, 0)
		return 0, ErrArg
	}

	k.criticalEnter()
	if len(k.freePool) == 0 {
		k.criticalExit()
		return 0, ErrDepleted
	}
	p := k.freePool[len(k.freePool)-1]
	k.freePool = k.freePool[:len(k.freePool)-1]
	k.criticalExit()

	p.size = uint16(size)
	p.count = uint16(count)
	p.kernelBuf = buf == nil
	if buf == nil {
		buf = make([]byte, count*size)
	}
	p.buf = buf
	p.free = make([]uint16, 0, count)
	p.alloc = true
	_ = k.BufPoolReset(p.handle())
	return p.handle(), nil
}

// BufPoolDelete returns a pool to the free list. Unless force is set,
// deletion is refused while blocks are outstanding.
func (k *Kernel) BufPoolDelete(id Handle, force bool) error {
	p, err := k.getBufPool(id)
	if err != nil {
		return err
	}
	k.criticalEnter()
	if int(p.count) != len(p.free) && !force {
		k.criticalExit()
		return ErrState
	}
	p.buf = nil
	p.free = nil
	p.alloc = false
	k.freePool = append(k.freePool, p)
	k.criticalExit()
	return nil
}

// BufPoolTake hands out a free block, or ErrDepleted when none is left.
func (k *Kernel) BufPoolTake(id Handle) ([]byte, error) {
	p, err := k.getBufPool(id)
	if err != nil {
		return nil, err
	}
	k.criticalEnter()
	if len(p.free) == 0 {
		k.criticalExit()
		return nil, ErrDepleted
	}
	i := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	k.criticalExit()

	off := int(i) * int(p.size)
	return p.buf[off : off+int(p.size) : off+int(p.size)], nil
}

// BufPoolGive returns a block to its pool. The block must be one handed
// out by BufPoolTake on the same pool.
func (k *Kernel) BufPoolGive(id Handle, b []byte) error {
	p, err := k.getBufPool(id)
	if err != nil {
		return err
	}
	if len(b) == 0 {
		k.notify(NotifyError, id)
		return ErrArg
	}

	// Identify the slot from the block address; reject anything outside
	// the pool or misaligned on a slot boundary.
	base := uintptr(unsafe.Pointer(&p.buf[0]))
	addr := uintptr(unsafe.Pointer(&b[0]))
	if addr < base || addr >= base+uintptr(len(p.buf)) {
		k.notify(NotifyError, id)
		return ErrArg
	}
	off := addr - base
	if off%uintptr(p.size) != 0 {
		k.notify(NotifyError, id)
		return ErrArg
	}
	slot := uint16(off / uintptr(p.size))

	k.criticalEnter()
	if len(p.free) == int(p.count) {
		k.criticalExit()
		k.notify(NotifyError, id)
		return ErrState
	}
	p.free = append(p.free, slot)
	k.criticalExit()
	return nil
}

// BufPoolCount returns the number of free blocks.
func (k *Kernel) BufPoolCount(id Handle) (int, error) {
	p, err := k.getBufPool(id)
	if err != nil {
		return 0, err
	}
	k.criticalEnter()
	n := len(p.free)
	k.criticalExit()
	return n, nil
}

// BufPoolReset unconditionally returns every block to the pool.
func (k *Kernel) BufPoolReset(id Handle) error {
	p, err := k.getBufPool(id)
	if err != nil {
		return err
	}
	k.criticalEnter()
	p.free = p.free[:0]
	for i := int(p.count) - 1; i >= 0; i-- {
		p.free = append(p.free, uint16(i))
	}
	k.criticalExit()
	return nil
}
