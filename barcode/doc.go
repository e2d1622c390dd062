/*Package barcode implements whitelist handling and error-tolerant
  lookup of sample barcodes.

  An Index is built once from a whitelist and a mismatch threshold k. For
  every barcode it enumerates the correction ball: all sequences within
  Hamming distance k, with N allowed as a substituted base. Lookups are a
  single map access. A sequence that falls in the balls of two different
  barcodes is ambiguous and is never assigned, except that a whitelisted
  sequence always resolves to its own barcode.

  For length-L barcodes the ball holds sum_{d<=k} C(L,d)*4^d sequences,
  so the index is intended for the usual L in [6,12] and k <= 2.
*/
package barcode
