package hash

import "github.com/minio/sha256-simd"

// Size is the size of both content hashes and digests (32 bytes).
const Size = 32

// Digest is an alias to minio sha256.Sum256. It is used for key space
// locations and arc set digests, which are not content addresses.
var Digest = sha256.Sum256

// Sum computes the blake3 content hash of the concatenated chunks.
func Sum(chunks ...[]byte) (rst [Size]byte) {
	hh := GetHasher()
	defer PutHasher(hh)
	for _, chunk := range chunks {
		hh.Write(chunk)
	}
	hh.Sum(rst[:0])
	return rst
}
