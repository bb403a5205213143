package simplefs

import "github.com/rs/zerolog"

// mountConfig holds the state built up by Option values passed to Mount.
type mountConfig struct {
	log zerolog.Logger
}

// Option configures Mount. Generalized from the teacher's single-purpose
// Option type into a small functional-options set, since Mount now has more
// than one independent knob (logger today, more later).
type Option func(*mountConfig)

// WithLogger overrides the zerolog.Logger a mounted FileSystem uses for
// structured diagnostics. The default is zerolog.Nop().
func WithLogger(log zerolog.Logger) Option {
	return func(c *mountConfig) {
		c.log = log
	}
}

func newMountConfig(opts []Option) mountConfig {
	c := mountConfig{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// formatConfig holds the state built up by FormatOption values passed to
// Format.
type formatConfig struct {
	blockSize uint32
	inodePerc int
	log       zerolog.Logger
	littleEnd bool
}

// FormatOption configures Format. Kept distinct from Option because
// formatting a device and mounting one take different knobs (size and inode
// density only make sense at format time).
type FormatOption func(*formatConfig)

// WithBlockSize sets the on-disk block size in bytes. The default is
// DefaultBlockSize (4096), the only size the superblock codec handles; with
// any other size Format returns an error.
func WithBlockSize(size uint32) FormatOption {
	return func(c *formatConfig) {
		c.blockSize = size
	}
}

// WithInodePercent sets the percentage of the device's blocks reserved for
// inode records, per spec §4.1's DEFAULT_PERC_INODES. The default is
// DefaultInodePercent (10).
func WithInodePercent(pct int) FormatOption {
	return func(c *formatConfig) {
		c.inodePerc = pct
	}
}

// WithFormatLogger overrides the logger Format uses while building a new
// image.
func WithFormatLogger(log zerolog.Logger) FormatOption {
	return func(c *formatConfig) {
		c.log = log
	}
}

// WithBigEndian forces Format to write a big-endian image. The default
// follows the host's native byte order, matching the original
// implementation's behavior of encoding in whatever order the writing
// machine runs (spec §9(a)).
func WithBigEndian(bigEndian bool) FormatOption {
	return func(c *formatConfig) {
		c.littleEnd = !bigEndian
	}
}

func newFormatConfig(opts []FormatOption) formatConfig {
	c := formatConfig{
		blockSize: DefaultBlockSize,
		inodePerc: DefaultInodePercent,
		log:       zerolog.Nop(),
		littleEnd: nativeLittleEndian(),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
