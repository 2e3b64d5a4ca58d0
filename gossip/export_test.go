package gossip

var WithClock = withClock
