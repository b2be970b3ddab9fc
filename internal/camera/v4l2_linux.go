//go:build linux

package camera

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/kozaktomas/face-attendance/internal/pipeline"
)

const (
	v4l2BufTypeVideoCapture = 1
	v4l2PixFmtMJPEG         = 0x47504a4d // 'MJPG'
	v4l2PixFmtJPEG          = 0x4745504a // 'JPEG'
	v4l2FieldNone           = 1
	v4l2MemoryMmap          = 1

	iocWrite = 1
	iocRead  = 2
)

// ioc builds an ioctl request number the way the kernel's _IOC macro does.
func ioc(dir, typ, nr, size uintptr) uintptr {
	return dir<<30 | size<<16 | typ<<8 | nr
}

type v4l2PixFormat struct {
	width        uint32
	height       uint32
	pixelformat  uint32
	field        uint32
	bytesperline uint32
	sizeimage    uint32
	colorspace   uint32
	priv         uint32
}

// v4l2Format mirrors struct v4l2_format. The union is 200 bytes and pointer aligned.
type v4l2Format struct {
	typ uint32
	fmt struct {
		pix v4l2PixFormat
		_   [200 - unsafe.Sizeof(v4l2PixFormat{})]byte
		_   [0]uintptr
	}
}

type v4l2Requestbuffers struct {
	count        uint32
	typ          uint32
	memory       uint32
	capabilities uint32
	flags        uint8
	reserved     [3]uint8
}

type v4l2Timecode struct {
	typ      uint32
	flags    uint32
	frames   uint8
	seconds  uint8
	minutes  uint8
	hours    uint8
	userbits [4]uint8
}

type v4l2Buffer struct {
	index     uint32
	typ       uint32
	bytesused uint32
	flags     uint32
	field     uint32
	timestamp unix.Timeval
	timecode  v4l2Timecode
	sequence  uint32
	memory    uint32
	m         uintptr // union; mmap offset in the low 32 bits
	length    uint32
	reserved2 uint32
	reserved  uint32
}

var (
	vidiocSFmt      = ioc(iocRead|iocWrite, 'V', 5, unsafe.Sizeof(v4l2Format{}))
	vidiocReqbufs   = ioc(iocRead|iocWrite, 'V', 8, unsafe.Sizeof(v4l2Requestbuffers{}))
	vidiocQuerybuf  = ioc(iocRead|iocWrite, 'V', 9, unsafe.Sizeof(v4l2Buffer{}))
	vidiocQbuf      = ioc(iocRead|iocWrite, 'V', 15, unsafe.Sizeof(v4l2Buffer{}))
	vidiocDqbuf     = ioc(iocRead|iocWrite, 'V', 17, unsafe.Sizeof(v4l2Buffer{}))
	vidiocStreamon  = ioc(iocWrite, 'V', 18, unsafe.Sizeof(int32(0)))
	vidiocStreamoff = ioc(iocWrite, 'V', 19, unsafe.Sizeof(int32(0)))
)

// pollInterval bounds how long Next blocks before re-checking its context
const pollInterval = 200 * time.Millisecond

// V4L2Source captures MJPEG frames from a Video4Linux2 device with a single
// memory mapped buffer.
type V4L2Source struct {
	device string
	width  uint32
	height uint32
	fd     int
	data   []byte
}

// OpenV4L2 opens device and starts streaming at the requested resolution.
func OpenV4L2(device string, width, height int) (*V4L2Source, error) {
	fd, err := unix.Open(device, unix.O_RDWR|unix.O_NONBLOCK, 0o666)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", device, err)
	}
	s := &V4L2Source{device: device, width: uint32(width), height: uint32(height), fd: fd}
	if err := s.start(); err != nil {
		s.Close()
		return nil, err
	}
	log.Printf("[CAMERA] streaming from %s at %dx%d", device, width, height)
	return s, nil
}

func (s *V4L2Source) ioctl(req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(s.fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func (s *V4L2Source) start() error {
	var format v4l2Format
	format.typ = v4l2BufTypeVideoCapture
	format.fmt.pix = v4l2PixFormat{
		width:       s.width,
		height:      s.height,
		pixelformat: v4l2PixFmtMJPEG,
		field:       v4l2FieldNone,
	}
	if err := s.ioctl(vidiocSFmt, unsafe.Pointer(&format)); err != nil {
		return fmt.Errorf("failed to set format: %w", err)
	}
	if pf := format.fmt.pix.pixelformat; pf != v4l2PixFmtMJPEG && pf != v4l2PixFmtJPEG {
		return fmt.Errorf("device %s does not support JPEG capture (format %#x)", s.device, pf)
	}

	req := v4l2Requestbuffers{count: 1, typ: v4l2BufTypeVideoCapture, memory: v4l2MemoryMmap}
	if err := s.ioctl(vidiocReqbufs, unsafe.Pointer(&req)); err != nil {
		return fmt.Errorf("failed to request buffer: %w", err)
	}

	buf := v4l2Buffer{typ: v4l2BufTypeVideoCapture, memory: v4l2MemoryMmap}
	if err := s.ioctl(vidiocQuerybuf, unsafe.Pointer(&buf)); err != nil {
		return fmt.Errorf("failed to query buffer: %w", err)
	}

	data, err := unix.Mmap(s.fd, int64(uint32(buf.m)), int(buf.length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("failed to map buffer: %w", err)
	}
	s.data = data

	if err := s.queue(); err != nil {
		return err
	}

	typ := int32(v4l2BufTypeVideoCapture)
	if err := s.ioctl(vidiocStreamon, unsafe.Pointer(&typ)); err != nil {
		return fmt.Errorf("failed to start stream: %w", err)
	}
	return nil
}

func (s *V4L2Source) queue() error {
	buf := v4l2Buffer{typ: v4l2BufTypeVideoCapture, memory: v4l2MemoryMmap}
	if err := s.ioctl(vidiocQbuf, unsafe.Pointer(&buf)); err != nil {
		return fmt.Errorf("failed to queue buffer: %w", err)
	}
	return nil
}

// Next waits for the next frame and decodes it.
func (s *V4L2Source) Next(ctx context.Context) (pipeline.Frame, error) {
	fds := []unix.PollFd{{Fd: int32(s.fd), Events: unix.POLLIN}}
	for {
		if err := ctx.Err(); err != nil {
			return pipeline.Frame{}, err
		}
		n, err := unix.Poll(fds, int(pollInterval/time.Millisecond))
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return pipeline.Frame{}, fmt.Errorf("failed to wait for frame: %w", err)
		}
		if n > 0 {
			break
		}
	}

	buf := v4l2Buffer{typ: v4l2BufTypeVideoCapture, memory: v4l2MemoryMmap}
	if err := s.ioctl(vidiocDqbuf, unsafe.Pointer(&buf)); err != nil {
		return pipeline.Frame{}, fmt.Errorf("failed to dequeue buffer: %w", err)
	}
	captured := time.Now()
	jpegData := make([]byte, buf.bytesused)
	copy(jpegData, s.data[:buf.bytesused])

	if err := s.queue(); err != nil {
		return pipeline.Frame{}, err
	}

	img, err := Decode(jpegData)
	if err != nil {
		return pipeline.Frame{}, err
	}
	return pipeline.NewFrame(img, captured, s.device), nil
}

// Close stops streaming and releases the device.
func (s *V4L2Source) Close() error {
	if s.data != nil {
		typ := int32(v4l2BufTypeVideoCapture)
		if err := s.ioctl(vidiocStreamoff, unsafe.Pointer(&typ)); err != nil {
			log.Printf("[CAMERA] failed to stop stream: %v", err)
		}
		unix.Munmap(s.data)
		s.data = nil
	}
	return unix.Close(s.fd)
}
