//go:build linux

package poller

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// epollPoller implements Poller over Linux epoll, using
// golang.org/x/sys/unix instead of the raw syscall package so the
// interest flags and constants stay portable across kernel versions.
type epollPoller struct {
	epfd int

	mu     sync.Mutex
	fdByID map[uint64]int
	idByFD map[int]uint64

	events []unix.EpollEvent
}

// New creates a Poller backed by epoll.
func New() (Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollPoller{
		epfd:   epfd,
		fdByID: make(map[uint64]int),
		idByFD: make(map[int]uint64),
		events: make([]unix.EpollEvent, 256),
	}, nil
}

func interestToEvents(i Interest) uint32 {
	var ev uint32
	if i.Readable {
		ev |= unix.EPOLLIN
	}
	if i.Writable {
		ev |= unix.EPOLLOUT
	}
	return ev | unix.EPOLLONESHOT | unix.EPOLLRDHUP
}

func (p *epollPoller) Add(id uint64, fd int, interest Interest) error {
	p.mu.Lock()
	if _, exists := p.fdByID[id]; exists {
		p.mu.Unlock()
		return ErrDuplicateID
	}
	p.fdByID[id] = fd
	p.idByFD[fd] = id
	p.mu.Unlock()

	ev := unix.EpollEvent{Events: interestToEvents(interest), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		p.mu.Lock()
		delete(p.fdByID, id)
		delete(p.idByFD, fd)
		p.mu.Unlock()
		return err
	}
	return nil
}

func (p *epollPoller) Modify(id uint64, interest Interest) error {
	p.mu.Lock()
	fd, ok := p.fdByID[id]
	p.mu.Unlock()
	if !ok {
		return ErrNotRegistered
	}
	ev := unix.EpollEvent{Events: interestToEvents(interest), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

func (p *epollPoller) Delete(id uint64) error {
	p.mu.Lock()
	fd, ok := p.fdByID[id]
	if ok {
		delete(p.fdByID, id)
		delete(p.idByFD, fd)
	}
	p.mu.Unlock()
	if !ok {
		return nil
	}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *epollPoller) Wait(out []Event, timeout time.Duration) (int, error) {
	n, err := unix.EpollWait(p.epfd, p.events, millis(timeout))
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	count := 0
	for i := 0; i < n && count < len(out); i++ {
		fd := int(p.events[i].Fd)
		id, ok := p.idByFD[fd]
		if !ok {
			continue // stale event for a since-deleted registration
		}
		out[count] = Event{
			ID:       id,
			Readable: p.events[i].Events&(unix.EPOLLIN|unix.EPOLLRDHUP) != 0,
			Writable: p.events[i].Events&unix.EPOLLOUT != 0,
		}
		count++
	}
	return count, nil
}

func (p *epollPoller) Close() error {
	return unix.Close(p.epfd)
}
