package habridge

import (
	"log"

	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/golog"
)

func (b *Bridge) WithGoLogger(parentLogger *log.Logger) {
	b.WithLogWrapLogger(logwrap.New(golog.Wrap(parentLogger)))
}

func (b *Bridge) WithLogWrapLogger(lw logwrap.Logger) {
	b.logger = lw
	b.dispatcher.logger = lw
}
