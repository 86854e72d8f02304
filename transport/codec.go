package transport

import "fixcore/codec"

var wireCodec = codec.Get(codec.TypeWire)
