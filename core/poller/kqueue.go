//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package poller

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// kqueuePoller implements Poller over BSD kqueue, using
// golang.org/x/sys/unix. Unlike epoll's single combined event mask,
// kqueue tracks readability and writability as independent filters, so
// registrations remember their last-applied interest to know which
// filters to remove on Modify. Every filter in the new interest is
// (re-)added, since a one-shot filter is gone once it has fired.
type kqueuePoller struct {
	kqfd int

	mu     sync.Mutex
	regs   map[uint64]kqueueReg
	idByFD map[int]uint64

	events []unix.Kevent_t
}

type kqueueReg struct {
	fd       int
	interest Interest
}

// New creates a Poller backed by kqueue.
func New() (Poller, error) {
	kqfd, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	return &kqueuePoller{
		kqfd:   kqfd,
		regs:   make(map[uint64]kqueueReg),
		idByFD: make(map[int]uint64),
		events: make([]unix.Kevent_t, 256),
	}, nil
}

func (p *kqueuePoller) applyInterest(fd int, from, to Interest) error {
	var changes []unix.Kevent_t
	if from.Readable || to.Readable {
		changes = append(changes, kevent(fd, unix.EVFILT_READ, to.Readable))
	}
	if from.Writable || to.Writable {
		changes = append(changes, kevent(fd, unix.EVFILT_WRITE, to.Writable))
	}
	if len(changes) == 0 {
		return nil
	}
	_, err := unix.Kevent(p.kqfd, changes, nil, nil)
	return err
}

func kevent(fd int, filter int16, enable bool) unix.Kevent_t {
	flags := uint16(unix.EV_DELETE)
	if enable {
		flags = unix.EV_ADD | unix.EV_ENABLE | unix.EV_ONESHOT
	}
	return unix.Kevent_t{Ident: uint64(fd), Filter: filter, Flags: flags}
}

func (p *kqueuePoller) Add(id uint64, fd int, interest Interest) error {
	p.mu.Lock()
	if _, exists := p.regs[id]; exists {
		p.mu.Unlock()
		return ErrDuplicateID
	}
	p.regs[id] = kqueueReg{fd: fd, interest: Interest{}}
	p.idByFD[fd] = id
	p.mu.Unlock()

	if err := p.applyInterest(fd, Interest{}, interest); err != nil {
		p.mu.Lock()
		delete(p.regs, id)
		delete(p.idByFD, fd)
		p.mu.Unlock()
		return err
	}

	p.mu.Lock()
	p.regs[id] = kqueueReg{fd: fd, interest: interest}
	p.mu.Unlock()
	return nil
}

func (p *kqueuePoller) Modify(id uint64, interest Interest) error {
	p.mu.Lock()
	reg, ok := p.regs[id]
	p.mu.Unlock()
	if !ok {
		return ErrNotRegistered
	}
	if err := p.applyInterest(reg.fd, reg.interest, interest); err != nil {
		return err
	}
	p.mu.Lock()
	p.regs[id] = kqueueReg{fd: reg.fd, interest: interest}
	p.mu.Unlock()
	return nil
}

func (p *kqueuePoller) Delete(id uint64) error {
	p.mu.Lock()
	reg, ok := p.regs[id]
	if ok {
		delete(p.regs, id)
		delete(p.idByFD, reg.fd)
	}
	p.mu.Unlock()
	if !ok {
		return nil
	}
	return p.applyInterest(reg.fd, reg.interest, Interest{})
}

func (p *kqueuePoller) Wait(out []Event, timeout time.Duration) (int, error) {
	var ts *unix.Timespec
	if timeout > 0 {
		ts = &unix.Timespec{
			Sec:  int64(timeout / time.Second),
			Nsec: int64(timeout % time.Second),
		}
	}

	n, err := unix.Kevent(p.kqfd, nil, p.events, ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}

	// Merge per-filter events for the same fd into a single Event,
	// since kqueue reports read/write readiness as separate entries.
	p.mu.Lock()
	defer p.mu.Unlock()
	merged := make(map[uint64]*Event)
	order := make([]uint64, 0, n)
	for i := 0; i < n; i++ {
		fd := int(p.events[i].Ident)
		id, ok := p.idByFD[fd]
		if !ok {
			continue
		}
		e, seen := merged[id]
		if !seen {
			e = &Event{ID: id}
			merged[id] = e
			order = append(order, id)
		}
		switch p.events[i].Filter {
		case unix.EVFILT_READ:
			e.Readable = true
		case unix.EVFILT_WRITE:
			e.Writable = true
		}
	}

	count := 0
	for _, id := range order {
		if count >= len(out) {
			break
		}
		out[count] = *merged[id]
		count++
	}
	return count, nil
}

func (p *kqueuePoller) Close() error {
	return unix.Close(p.kqfd)
}
