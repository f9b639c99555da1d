package utils

const Megabyte = 1 << 20
